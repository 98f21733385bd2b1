// Package pipeline sequences a deployment run: compile, deploy, record,
// verify, report. Steps run strictly in order and each step only starts
// after the previous one succeeded; a compilation error never costs gas and
// a deployment is never recorded without an on-chain confirmation.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deployline/deployline/internal/compiler"
	"github.com/deployline/deployline/internal/deploy"
	"github.com/deployline/deployline/internal/storage"
	"github.com/deployline/deployline/internal/verifier"
)

// Builder compiles the project and loads artifacts. *compiler.Forge
// satisfies it.
type Builder interface {
	Build(ctx context.Context) ([]string, error)
	Artifact(ref compiler.ContractRef) (*compiler.Artifact, error)
	VerificationInput(ref compiler.ContractRef) (*compiler.VerificationInput, error)
}

// ContractDeployer submits the creation transaction and waits for
// confirmation. *deploy.Deployer satisfies it.
type ContractDeployer interface {
	Deploy(ctx context.Context, req deploy.Request) (*storage.Deployment, error)
}

// SourceVerifier drives explorer verification. *verifier.Service
// satisfies it.
type SourceVerifier interface {
	Verify(ctx context.Context, rec *storage.Deployment, input *compiler.VerificationInput, constructorArgs string) (*verifier.Result, error)
}

// RecordStore persists deployment records. storage.Store satisfies it.
type RecordStore interface {
	AppendDeployment(ctx context.Context, d *storage.Deployment) error
}

// Reporter renders step outcomes. *report.Reporter satisfies it.
type Reporter interface {
	Deployment(d *storage.Deployment)
	Verification(d *storage.Deployment, res *verifier.Result)
}

// Options configures a single pipeline run.
type Options struct {
	Contract        compiler.ContractRef
	ConstructorArgs string // 0x-prefixed ABI-encoded hex, may be empty
	Network         string
	PinnedVersion   string // solc version the artifact must match, may be empty
	SkipVerify      bool
}

// Pipeline runs the deploy sequence against one network.
type Pipeline struct {
	builder  Builder
	deployer ContractDeployer
	verifier SourceVerifier
	store    RecordStore
	reporter Reporter
	logger   *slog.Logger
}

// New creates a Pipeline. verifier may be nil when verification is
// unavailable for the network (no explorer API configured).
func New(builder Builder, deployer ContractDeployer, v SourceVerifier, store RecordStore, reporter Reporter, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		builder:  builder,
		deployer: deployer,
		verifier: v,
		store:    store,
		reporter: reporter,
		logger:   logger,
	}
}

// Run executes the full sequence and returns the persisted record.
//
// The returned record is valid even when the error is non-nil, as long as
// the deployment itself confirmed: verification failures happen after the
// record exists and do not undo it.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*storage.Deployment, error) {
	args, err := decodeConstructorArgs(opts.ConstructorArgs)
	if err != nil {
		return nil, err
	}

	p.logger.Info("compiling project", "contract", opts.Contract.String())
	if _, err := p.builder.Build(ctx); err != nil {
		return nil, err
	}

	artifact, err := p.builder.Artifact(opts.Contract)
	if err != nil {
		return nil, err
	}
	if err := compiler.CheckVersion(artifact.CompilerVersion, opts.PinnedVersion); err != nil {
		return nil, err
	}

	p.logger.Info("deploying contract",
		"contract", artifact.Name, "network", opts.Network, "compiler", artifact.CompilerVersion)

	rec, err := p.deployer.Deploy(ctx, deploy.Request{
		ContractName:    artifact.Name,
		Bytecode:        artifact.Bytecode,
		ConstructorArgs: args,
		CompilerVersion: artifact.CompilerVersion,
	})
	if err != nil {
		return nil, err
	}

	if err := p.store.AppendDeployment(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrExists) {
			p.logger.Warn("deployment already recorded", "txHash", rec.TxHash)
		} else {
			// The contract is live; losing the record is worth failing
			// loudly over, but the operator needs the address regardless.
			p.reporter.Deployment(rec)
			return rec, fmt.Errorf("recording deployment %s: %w", rec.TxHash, err)
		}
	}

	p.reporter.Deployment(rec)

	if opts.SkipVerify {
		p.logger.Info("verification skipped", "contract", rec.ContractName)
		return rec, nil
	}
	if p.verifier == nil {
		p.logger.Warn("no explorer API configured, skipping verification", "network", opts.Network)
		return rec, nil
	}

	input, err := p.builder.VerificationInput(opts.Contract)
	if err != nil {
		return rec, fmt.Errorf("loading sources for verification: %w", err)
	}

	res, err := p.verifier.Verify(ctx, rec, input, strings.TrimPrefix(opts.ConstructorArgs, "0x"))
	if err != nil {
		return rec, err
	}
	p.reporter.Verification(rec, res)

	return rec, nil
}

func decodeConstructorArgs(hexArgs string) ([]byte, error) {
	if hexArgs == "" {
		return nil, nil
	}
	args, err := hex.DecodeString(strings.TrimPrefix(hexArgs, "0x"))
	if err != nil {
		return nil, fmt.Errorf("constructor args are not valid hex: %w", err)
	}
	return args, nil
}
