package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deployline/deployline/internal/compiler"
	"github.com/deployline/deployline/internal/config"
	"github.com/deployline/deployline/internal/storage"
)

// Common errors returned by the verification service.
var (
	// ErrAlreadyVerified is returned by the explorer when the contract was
	// verified by someone else before we submitted. The service treats it
	// as a success.
	ErrAlreadyVerified = errors.New("contract already verified")

	// ErrVerifyFailed means the explorer rejected the source as not
	// matching the deployed bytecode.
	ErrVerifyFailed = errors.New("verification failed")
)

// Status is the verification state persisted on a deployment record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Result is the outcome of a verification attempt.
type Result struct {
	Status      Status
	GUID        string
	ExplorerURL string
	Message     string
}

// ExplorerClient defines the explorer operations the service needs.
type ExplorerClient interface {
	SubmitSource(ctx context.Context, req SubmitRequest) (string, error)
	CheckStatus(ctx context.Context, guid string) (CheckOutcome, string, error)
}

// VerificationStore defines the storage operations the service needs.
type VerificationStore interface {
	UpdateVerification(ctx context.Context, txHash, status, guid, explorerURL string) error
}

// Service drives a deployment record through explorer verification:
// submit standard-JSON sources, poll by GUID, persist the outcome.
type Service struct {
	client     ExplorerClient
	store      VerificationStore
	browserURL string
	cfg        config.VerifyConfig
	logger     *slog.Logger
}

// NewService creates a verification service.
func NewService(client ExplorerClient, store VerificationStore, browserURL string, cfg config.VerifyConfig, logger *slog.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	return &Service{
		client:     client,
		store:      store,
		browserURL: browserURL,
		cfg:        cfg,
		logger:     logger,
	}
}

// Verify submits the deployment's sources and waits for the explorer verdict.
//
// Re-running against an already verified record is a no-op: the stored
// result is returned without contacting the explorer. A verdict that does
// not arrive within the configured timeout is not an error; the record is
// marked pending with its GUID so the operator can re-run verify later.
func (s *Service) Verify(ctx context.Context, rec *storage.Deployment, input *compiler.VerificationInput, constructorArgs string) (*Result, error) {
	if rec.VerifyStatus == string(StatusVerified) {
		s.logger.Info("contract already verified, skipping submission",
			"contract", rec.ContractName, "address", rec.Address)
		return &Result{
			Status:      StatusVerified,
			GUID:        rec.VerifyGUID,
			ExplorerURL: rec.ExplorerURL,
			Message:     "already verified",
		}, nil
	}

	guid := rec.VerifyGUID
	if rec.VerifyStatus == string(StatusFailed) {
		// A failed verdict is final for that submission. Resubmit so a
		// corrected input (wrong constructor args, usually) gets a
		// fresh GUID instead of re-polling the dead one.
		guid = ""
	}
	if guid == "" {
		submitted, err := s.submit(ctx, rec, input, constructorArgs)
		if err != nil {
			if errors.Is(err, ErrAlreadyVerified) {
				return s.finish(ctx, rec, StatusVerified, "", "already verified on explorer")
			}
			return nil, err
		}
		guid = submitted

		// Persist the GUID before polling so a later verify run can
		// resume instead of resubmitting.
		if err := s.store.UpdateVerification(ctx, rec.TxHash, string(StatusPending), guid, ""); err != nil {
			s.logger.Warn("failed to persist verification guid", "err", err)
		}
	}

	s.logger.Info("verification submitted, polling for result",
		"contract", rec.ContractName, "guid", guid, "timeout", s.cfg.Timeout)

	return s.poll(ctx, rec, guid)
}

func (s *Service) submit(ctx context.Context, rec *storage.Deployment, input *compiler.VerificationInput, constructorArgs string) (string, error) {
	req := SubmitRequest{
		Address:         rec.Address,
		ContractName:    fmt.Sprintf("%s:%s", input.SourcePath, input.ContractName),
		StandardJSON:    input.StandardJSON,
		CompilerVersion: solcVersionParam(input.SolcLongVersion),
		ConstructorArgs: constructorArgs,
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		g, err := s.client.SubmitSource(ctx, req)
		if err == nil {
			return g, nil
		}
		if errors.Is(err, ErrAlreadyVerified) {
			return "", err
		}
		var explorerErr *ExplorerError
		if errors.As(err, &explorerErr) {
			// The API answered; resubmitting the same payload will not help.
			return "", fmt.Errorf("submitting sources: %w", err)
		}
		lastErr = err
		s.logger.Warn("verification submit failed, retrying", "attempt", attempt+1, "err", err)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 2 * time.Second):
		}
	}
	return "", fmt.Errorf("submitting sources: %w", lastErr)
}

func (s *Service) poll(ctx context.Context, rec *storage.Deployment, guid string) (*Result, error) {
	deadline := time.Now().Add(s.cfg.Timeout)

	for {
		outcome, detail, err := s.client.CheckStatus(ctx, guid)
		if err != nil {
			s.logger.Warn("verification status check failed", "guid", guid, "err", err)
		} else {
			switch outcome {
			case OutcomeVerified:
				return s.finish(ctx, rec, StatusVerified, guid, detail)
			case OutcomeFailed:
				if _, ferr := s.finish(ctx, rec, StatusFailed, guid, detail); ferr != nil {
					s.logger.Warn("failed to persist verification status", "err", ferr)
				}
				return nil, fmt.Errorf("%w: %s", ErrVerifyFailed, detail)
			}
		}

		if time.Now().After(deadline) {
			// Not fatal. The submission stays queued on the explorer side;
			// a later `verify` picks up the same GUID.
			if err := s.store.UpdateVerification(ctx, rec.TxHash, string(StatusPending), guid, ""); err != nil {
				s.logger.Warn("failed to persist verification status", "err", err)
			}
			return &Result{
				Status: StatusPending,
				GUID:   guid,
				Message: fmt.Sprintf("explorer did not respond within %s; run `deployline verify --address %s` to check again",
					s.cfg.Timeout, rec.Address),
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *Service) finish(ctx context.Context, rec *storage.Deployment, status Status, guid, message string) (*Result, error) {
	explorerURL := ""
	if status == StatusVerified {
		explorerURL = VerifiedURL(s.browserURL, rec.Address)
	}
	if err := s.store.UpdateVerification(ctx, rec.TxHash, string(status), guid, explorerURL); err != nil {
		return nil, fmt.Errorf("persisting verification status: %w", err)
	}
	return &Result{
		Status:      status,
		GUID:        guid,
		ExplorerURL: explorerURL,
		Message:     message,
	}, nil
}

// solcVersionParam formats a solc long version the way the explorer expects:
// "0.8.28+commit.7893614a" becomes "v0.8.28+commit.7893614a".
func solcVersionParam(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// VerifiedURL returns the explorer page showing the verified source.
func VerifiedURL(browserURL, address string) string {
	if browserURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s#code", browserURL, address)
}
