// Package cli wires the deployline commands: deploy, verify, report, config.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/deployline/deployline/internal/config"
)

var networkFlag string

var (
	cmdCtx     context.Context
	cmdCtxOnce sync.Once
)

// cmdContext returns a process-wide context canceled on SIGINT/SIGTERM.
func cmdContext() context.Context {
	cmdCtxOnce.Do(func() {
		cmdCtx, _ = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	})
	return cmdCtx
}

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "deployline",
		Short:   "Smart contract deployment pipeline CLI",
		Long:    `Deployline compiles, deploys, and verifies smart contracts on Base, recording every deployment in a local append-only log.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&networkFlag, "network", "", "target network (default from deployline.toml, else base)")

	// Add subcommands
	rootCmd.AddCommand(createDeployCmd())
	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createReportCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd.Execute()
}

// setupLogger builds the process logger. Logs go to stderr so stdout stays
// clean for reports and --json output.
func setupLogger(level, format string) *slog.Logger {
	lvl := parseLevel(level)
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getNetwork returns the network name from flag, env, or project config.
func getNetwork() string {
	// 1. Command line flag
	if networkFlag != "" {
		return networkFlag
	}

	// 2. Environment variable
	if env := os.Getenv("DEPLOYLINE_NETWORK"); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if project, _, err := config.LoadProject(); err == nil && project.Network != "" {
		return project.Network
	}

	// 4. User-level config (~/.deployline/config.yaml)
	if global, _, err := config.LoadGlobal(); err == nil && global.Network != "" {
		return global.Network
	}

	// 5. Default
	return "base"
}
