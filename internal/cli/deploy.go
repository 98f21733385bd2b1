package cli

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/deployline/deployline/internal/compiler"
	"github.com/deployline/deployline/internal/config"
	"github.com/deployline/deployline/internal/deploy"
	"github.com/deployline/deployline/internal/pipeline"
	"github.com/deployline/deployline/internal/report"
	"github.com/deployline/deployline/internal/signer"
	"github.com/deployline/deployline/internal/storage"
	"github.com/deployline/deployline/internal/verifier"
)

func createDeployCmd() *cobra.Command {
	var contract string
	var constructorArgs string
	var projectDir string
	var skipVerify bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Compile, deploy, and verify a contract",
		Long: `Compile the Foundry project, deploy the named contract, record the
deployment, and submit sources for explorer verification.

The sequence stops at the first hard failure: a contract that does not
compile is never submitted, and a transaction is never sent from an
account that cannot cover the gas cost.

EXAMPLES:
  # Deploy the contract named in deployline.toml
  deployline deploy

  # Deploy a specific contract
  deployline deploy --contract src/Counter.sol:Counter

  # Deploy with ABI-encoded constructor arguments
  deployline deploy --contract src/Token.sol:Token \
    --constructor-args 0x000000000000000000000000000000000000000000000000000000000000002a

  # Deploy without waiting on the explorer
  deployline deploy --contract src/Counter.sol:Counter --skip-verify
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(contract, constructorArgs, projectDir, skipVerify, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "contract to deploy as path:Name (default from deployline.toml)")
	cmd.Flags().StringVar(&constructorArgs, "constructor-args", "", "ABI-encoded constructor arguments, 0x-prefixed hex")
	cmd.Flags().StringVar(&projectDir, "project-dir", "", "Foundry project root (default from config)")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip explorer verification")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")

	return cmd
}

func runDeploy(contract, constructorArgs, projectDir string, skipVerify, jsonOutput bool) error {
	cfg, err := config.Load(getNetwork())
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	ref, err := resolveContract(contract)
	if err != nil {
		return err
	}
	if projectDir != "" {
		cfg.Compiler.ProjectDir = projectDir
	}

	password, err := signer.ResolvePassword(cfg.Signer)
	if err != nil {
		return err
	}
	sig, err := signer.NewKeystoreSigner(cfg.Signer.KeystorePath, password)
	if err != nil {
		return err
	}

	client, err := ethclient.DialContext(cmdContext(), cfg.Network.RPCURL)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Network.RPCURL, err)
	}
	defer client.Close()

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(cmdContext()); err != nil {
		return err
	}

	forge := compiler.New(cfg.Compiler.ForgeBin, cfg.Compiler.ProjectDir, logger)
	deployer := deploy.New(client, sig, cfg.Network, logger, deploy.Options{})
	reporter := report.New(os.Stdout, jsonOutput, logger)

	var verifySvc pipeline.SourceVerifier
	if cfg.Network.ExplorerAPIURL != "" {
		explorer := verifier.NewEtherscanClient(
			cfg.Network.ExplorerAPIURL, cfg.Network.ExplorerAPIKey, cfg.Network.ChainID,
			verifier.WithRateLimit(cfg.Verify.RequestsPerSecond))
		verifySvc = verifier.NewService(explorer, store, cfg.Network.ExplorerBrowserURL, cfg.Verify, logger)
	}

	p := pipeline.New(forge, deployer, verifySvc, store, reporter, logger)
	_, err = p.Run(cmdContext(), pipeline.Options{
		Contract:        ref,
		ConstructorArgs: constructorArgs,
		Network:         cfg.Network.Name,
		PinnedVersion:   cfg.Compiler.Version,
		SkipVerify:      skipVerify,
	})
	return err
}

// resolveContract picks the contract ref from the flag or deployline.toml.
func resolveContract(flag string) (compiler.ContractRef, error) {
	if flag != "" {
		return compiler.ParseContractRef(flag)
	}
	if project, _, err := config.LoadProject(); err == nil && project.Contract != "" {
		return compiler.ParseContractRef(project.Contract)
	}
	return compiler.ContractRef{}, fmt.Errorf("no contract specified (use --contract src/Counter.sol:Counter or set contract in deployline.toml)")
}
