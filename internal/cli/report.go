package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deployline/deployline/internal/config"
	"github.com/deployline/deployline/internal/report"
	"github.com/deployline/deployline/internal/storage"
	"github.com/deployline/deployline/internal/validation"
)

func createReportCmd() *cobra.Command {
	var txHash string
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show recorded deployments",
		Long: `Show deployments from the local log, most recent first, or a single
deployment by transaction hash.

EXAMPLES:
  # List recent deployments
  deployline report

  # Show one deployment
  deployline report --tx 0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b

  # Machine readable output
  deployline report --json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(txHash, jsonOutput, limit)
		},
	}

	cmd.Flags().StringVar(&txHash, "tx", "", "show the deployment with this transaction hash")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum deployments to list")

	return cmd
}

func runReport(txHash string, jsonOutput bool, limit int) error {
	cfg, err := config.Load(getNetwork())
	if err != nil {
		// Reporting reads the local log only; a missing keystore or RPC
		// URL must not block it.
		var cfgErr *config.Error
		if !errors.As(err, &cfgErr) {
			return err
		}
		cfg = &config.Config{
			Storage: config.StorageFromEnv(),
			Logging: config.LoggingConfig{Level: "info", Format: "text"},
		}
	}
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(cmdContext()); err != nil {
		return err
	}

	reporter := report.New(os.Stdout, jsonOutput, logger)

	if txHash != "" {
		if err := validation.ValidateTxHash(txHash); err != nil {
			return err
		}
		rec, err := store.GetDeploymentByTxHash(cmdContext(), txHash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no deployment recorded for tx %s", txHash)
			}
			return err
		}
		reporter.Deployment(rec)
		return nil
	}

	deployments, err := store.ListDeployments(cmdContext(), limit)
	if err != nil {
		return err
	}
	reporter.List(deployments)
	return nil
}
