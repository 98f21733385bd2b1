package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deployline/deployline/internal/config"
)

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var network string
	var contract string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a deployline.toml configuration file in the current directory.

This file stores project settings: the target network, the contract to
deploy, and per-network credentials.

EXAMPLES:
  # Create config for Base mainnet
  deployline config init

  # Create config with a default contract
  deployline config init --contract src/Counter.sol:Counter

  # Overwrite existing config
  deployline config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(network, contract, force)
		},
	}

	cmd.Flags().StringVar(&network, "network", "base", "target network")
	cmd.Flags().StringVar(&contract, "contract", "", "default contract as Source.sol:Name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the effective configuration and where each value comes from.

EXAMPLES:
  deployline config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	return cmd
}

func runConfigInit(network, contract string, force bool) error {
	configPath := "deployline.toml"

	// Check if any config file already exists
	for _, cfgFile := range projectConfigFileNames() {
		if _, err := os.Stat(cfgFile); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", cfgFile)
		}
	}

	if _, ok := config.BuiltinNetwork(network); !ok {
		return fmt.Errorf("unknown network %q", network)
	}

	// Generate TOML config
	content := fmt.Sprintf(`# Deployline project configuration

network = "%s"
contract = "%s"

# Foundry project root (default: current directory)
# project_dir = "."

[networks.%s]
# rpc_url = "https://mainnet.base.org"
# explorer_api_key = ""
keystore = "./keystore/deployer.json"
# password_file = "./keystore/.password"
`, network, contract, network)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s to point at your keystore\n", configPath)
	fmt.Println("  2. Export DEPLOYLINE_EXPLORER_API_KEY for source verification")
	fmt.Println("  3. Run 'deployline deploy --contract src/Counter.sol:Counter'")

	return nil
}

func runConfigShow() error {
	fmt.Println("Configuration sources (in order of precedence):")
	fmt.Println()

	// 1. Command line flags
	fmt.Println("1. Command line flags")
	fmt.Println("   --network, --contract, --project-dir")
	fmt.Println()

	// 2. Environment variables
	fmt.Println("2. Environment variables")
	for _, key := range []string{
		"DEPLOYLINE_NETWORK",
		"DEPLOYLINE_RPC_URL",
		"DEPLOYLINE_KEYSTORE",
		"DEPLOYLINE_EXPLORER_API_KEY",
		"DATABASE_URL",
	} {
		v := os.Getenv(key)
		switch {
		case v == "":
			fmt.Printf("   %s=(not set)\n", key)
		case key == "DEPLOYLINE_EXPLORER_API_KEY" || key == "DATABASE_URL":
			fmt.Printf("   %s=%s\n", key, maskSecret(v))
		default:
			fmt.Printf("   %s=%s\n", key, v)
		}
	}
	fmt.Println()

	// 3. Local project config
	fmt.Println("3. Local project config (deployline.toml or dl.toml)")
	project, configPath, err := config.LoadProject()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		fmt.Printf("   Loaded from: %s\n", configPath)
		if project.Network != "" {
			fmt.Printf("   network: %s\n", project.Network)
		}
		if project.Contract != "" {
			fmt.Printf("   contract: %s\n", project.Contract)
		}
		if project.ProjectDir != "" {
			fmt.Printf("   project_dir: %s\n", project.ProjectDir)
		}
		for name, pn := range project.Networks {
			fmt.Printf("   networks.%s:\n", name)
			if pn.RPCURL != "" {
				fmt.Printf("     rpc_url: %s\n", pn.RPCURL)
			}
			if pn.Keystore != "" {
				fmt.Printf("     keystore: %s\n", pn.Keystore)
			}
			if pn.ExplorerAPIKey != "" {
				fmt.Printf("     explorer_api_key: %s\n", maskSecret(pn.ExplorerAPIKey))
			}
		}
	}
	fmt.Println()

	// 4. User-level config
	fmt.Println("4. User config (~/.deployline/config.yaml)")
	global, globalPath, err := config.LoadGlobal()
	switch {
	case err != nil:
		fmt.Printf("   Error: %v\n", err)
	case global.Network == "" && global.Keystore == "" && global.ExplorerAPIKey == "":
		fmt.Println("   (not found or empty)")
	default:
		fmt.Printf("   Loaded from: %s\n", globalPath)
		if global.Network != "" {
			fmt.Printf("   network: %s\n", global.Network)
		}
		if global.Keystore != "" {
			fmt.Printf("   keystore: %s\n", global.Keystore)
		}
		if global.ExplorerAPIKey != "" {
			fmt.Printf("   explorer_api_key: %s\n", maskSecret(global.ExplorerAPIKey))
		}
	}
	fmt.Println()

	// 5. Built-in network defaults
	fmt.Println("5. Built-in networks")
	for _, name := range config.NetworkNames() {
		n, _ := config.BuiltinNetwork(name)
		fmt.Printf("   %s: chain %d, %s\n", name, n.ChainID, n.RPCURL)
	}

	return nil
}

func projectConfigFileNames() []string {
	return []string{"deployline.toml", "dl.toml"}
}

// maskSecret shows just enough of a credential to identify it.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
