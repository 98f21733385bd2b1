package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deployline/deployline/internal/compiler"
	"github.com/deployline/deployline/internal/config"
	"github.com/deployline/deployline/internal/report"
	"github.com/deployline/deployline/internal/storage"
	"github.com/deployline/deployline/internal/validation"
	"github.com/deployline/deployline/internal/verifier"
)

func createVerifyCmd() *cobra.Command {
	var address string
	var constructorArgs string
	var projectDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a recorded deployment on the explorer",
		Long: `Submit the sources of a previously recorded deployment for explorer
verification, or resume one that timed out.

Verification is idempotent: a deployment that is already verified is
reported as such without resubmitting, and a pending submission is
polled by its stored GUID.

EXAMPLES:
  # Verify a recorded deployment
  deployline verify --address 0x5FbDB2315678afecb367f032d93F642f64180aa3
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(address, constructorArgs, projectDir, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "deployed contract address (required)")
	cmd.Flags().StringVar(&constructorArgs, "constructor-args", "", "ABI-encoded constructor arguments, 0x-prefixed hex")
	cmd.Flags().StringVar(&projectDir, "project-dir", "", "Foundry project root (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

func runVerify(address, constructorArgs, projectDir string, jsonOutput bool) error {
	if err := validation.ValidateAddress(address); err != nil {
		return err
	}

	cfg, err := config.Load(getNetwork())
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Network.ExplorerAPIURL == "" {
		return fmt.Errorf("network %q has no explorer API configured", cfg.Network.Name)
	}
	if projectDir != "" {
		cfg.Compiler.ProjectDir = projectDir
	}

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(cmdContext()); err != nil {
		return err
	}

	rec, err := store.GetDeploymentByAddress(cmdContext(), cfg.Network.ChainID, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no recorded deployment at %s on chain %d (was it deployed with deployline?)", address, cfg.Network.ChainID)
		}
		return err
	}

	forge := compiler.New(cfg.Compiler.ForgeBin, cfg.Compiler.ProjectDir, logger)
	ref := compiler.ContractRef{Name: rec.ContractName}
	if project, _, perr := config.LoadProject(); perr == nil && project.Contract != "" {
		if parsed, rerr := compiler.ParseContractRef(project.Contract); rerr == nil && parsed.Name == rec.ContractName {
			ref = parsed
		}
	}
	if ref.SourcePath == "" {
		// The record stores only the contract name. Rebuild so the
		// artifact index can resolve the source path.
		if _, err := forge.Build(cmdContext()); err != nil {
			return err
		}
		resolved, err := forge.ResolveContract(rec.ContractName)
		if err != nil {
			return err
		}
		ref = resolved
	}

	input, err := forge.VerificationInput(ref)
	if err != nil {
		return fmt.Errorf("loading sources for verification: %w", err)
	}

	explorer := verifier.NewEtherscanClient(
		cfg.Network.ExplorerAPIURL, cfg.Network.ExplorerAPIKey, cfg.Network.ChainID,
		verifier.WithRateLimit(cfg.Verify.RequestsPerSecond))
	svc := verifier.NewService(explorer, store, cfg.Network.ExplorerBrowserURL, cfg.Verify, logger)

	res, err := svc.Verify(cmdContext(), rec, input, trimHexPrefix(constructorArgs))
	if err != nil {
		return err
	}

	reporter := report.New(os.Stdout, jsonOutput, logger)
	reporter.Verification(rec, res)
	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0:2] == "0x" {
		return s[2:]
	}
	return s
}
