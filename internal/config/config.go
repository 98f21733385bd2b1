// Package config loads and validates deployline configuration.
//
// Precedence, highest first: environment variables, the project config file
// (deployline.toml), built-in network defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Error is a configuration validation failure. It is always fatal and always
// raised before any network call.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config holds all configuration for a pipeline run. Immutable once loaded.
type Config struct {
	Network  Network
	Signer   SignerConfig
	Compiler CompilerConfig
	Storage  StorageConfig
	Verify   VerifyConfig
	Logging  LoggingConfig
}

// Network describes the target chain and its explorer.
type Network struct {
	Name               string
	ChainID            uint64
	RPCURL             string
	ExplorerAPIURL     string
	ExplorerBrowserURL string
	ExplorerAPIKey     string
}

// SignerConfig references the signing credential. Only the reference (a
// keystore file path) lives here; the key material is never loaded into
// config and never logged.
type SignerConfig struct {
	KeystorePath string
	PasswordFile string
}

// CompilerConfig holds external compiler invocation settings.
type CompilerConfig struct {
	ForgeBin   string
	ProjectDir string
	// Version, when set, pins the expected solc version. The pipeline fails
	// if the compiled artifact reports a different version.
	Version string
}

// StorageConfig holds deployment log settings.
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string
}

// VerifyConfig bounds how long a verify waits on the explorer.
type VerifyConfig struct {
	PollInterval      time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// ProjectConfig is the project-level TOML configuration (deployline.toml).
type ProjectConfig struct {
	Network    string                    `toml:"network,omitempty"`
	Contract   string                    `toml:"contract,omitempty"`
	ProjectDir string                    `toml:"project_dir,omitempty"`
	Networks   map[string]ProjectNetwork `toml:"networks,omitempty"`
}

// ProjectNetwork contains per-network overrides in the project config.
type ProjectNetwork struct {
	RPCURL         string `toml:"rpc_url,omitempty"`
	ExplorerAPIKey string `toml:"explorer_api_key,omitempty"`
	Keystore       string `toml:"keystore,omitempty"`
	PasswordFile   string `toml:"password_file,omitempty"`
}

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"deployline.toml", "dl.toml"}

// Load builds the effective configuration for the named network.
func Load(networkName string) (*Config, error) {
	network, ok := BuiltinNetwork(networkName)
	if !ok {
		return nil, &Error{Field: "network", Reason: fmt.Sprintf("unknown network %q (known: %s)", networkName, strings.Join(NetworkNames(), ", "))}
	}

	cfg := &Config{
		Network: network,
		Signer:  SignerConfig{},
		Compiler: CompilerConfig{
			ForgeBin:   getEnv("DEPLOYLINE_FORGE_BIN", "forge"),
			ProjectDir: getEnv("DEPLOYLINE_PROJECT_DIR", "."),
			Version:    getEnv("DEPLOYLINE_SOLC_VERSION", ""),
		},
		Storage: StorageFromEnv(),
		Verify: VerifyConfig{
			PollInterval:      time.Duration(getEnvInt("DEPLOYLINE_VERIFY_POLL_SECONDS", 5)) * time.Second,
			Timeout:           time.Duration(getEnvInt("DEPLOYLINE_VERIFY_TIMEOUT_SECONDS", 180)) * time.Second,
			RequestsPerSecond: getEnvFloat("DEPLOYLINE_EXPLORER_RPS", 4),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	// User-level config fills credentials that apply across projects
	if global := loadGlobalSilent(); global != nil {
		if global.ExplorerAPIKey != "" {
			cfg.Network.ExplorerAPIKey = global.ExplorerAPIKey
		}
		if global.Keystore != "" {
			cfg.Signer.KeystorePath = global.Keystore
		}
		if global.PasswordFile != "" {
			cfg.Signer.PasswordFile = global.PasswordFile
		}
	}

	// Project config file overrides built-in network defaults
	if project := loadProjectSilent(); project != nil {
		if cfg.Compiler.ProjectDir == "." && project.ProjectDir != "" {
			cfg.Compiler.ProjectDir = project.ProjectDir
		}
		if pn, ok := project.Networks[networkName]; ok {
			if pn.RPCURL != "" {
				cfg.Network.RPCURL = pn.RPCURL
			}
			if pn.ExplorerAPIKey != "" {
				cfg.Network.ExplorerAPIKey = pn.ExplorerAPIKey
			}
			if pn.Keystore != "" {
				cfg.Signer.KeystorePath = pn.Keystore
			}
			if pn.PasswordFile != "" {
				cfg.Signer.PasswordFile = pn.PasswordFile
			}
		}
	}

	// Environment overrides everything
	if v := os.Getenv("DEPLOYLINE_RPC_URL"); v != "" {
		cfg.Network.RPCURL = v
	}
	if v := os.Getenv("DEPLOYLINE_CHAIN_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, &Error{Field: "chainId", Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		cfg.Network.ChainID = id
	}
	if v := os.Getenv("DEPLOYLINE_EXPLORER_API_KEY"); v != "" {
		cfg.Network.ExplorerAPIKey = v
	}
	if v := os.Getenv("DEPLOYLINE_KEYSTORE"); v != "" {
		cfg.Signer.KeystorePath = v
	}
	if v := os.Getenv("DEPLOYLINE_KEYSTORE_PASSWORD_FILE"); v != "" {
		cfg.Signer.PasswordFile = v
	}

	if err := cfg.validate(network.ChainID); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks required fields and that the effective chain ID still
// matches the named network. An override pointing a "base" run at a
// different chain is refused before any network call is made.
func (c *Config) validate(expectedChainID uint64) error {
	if c.Network.RPCURL == "" {
		return &Error{Field: "rpcUrl", Reason: "required (set DEPLOYLINE_RPC_URL or networks." + c.Network.Name + ".rpc_url in deployline.toml)"}
	}
	if c.Network.ChainID == 0 {
		return &Error{Field: "chainId", Reason: "required"}
	}
	if c.Network.ChainID != expectedChainID {
		return &Error{
			Field:  "chainId",
			Reason: fmt.Sprintf("%d does not match network %q (expected %d)", c.Network.ChainID, c.Network.Name, expectedChainID),
		}
	}
	if c.Signer.KeystorePath == "" {
		return &Error{Field: "keystore", Reason: "signing credential reference required (set DEPLOYLINE_KEYSTORE or networks." + c.Network.Name + ".keystore)"}
	}
	return nil
}

// StorageFromEnv builds the storage configuration from the environment.
// Setting DATABASE_URL switches the deployment log to postgres.
func StorageFromEnv() StorageConfig {
	cfg := StorageConfig{
		Type: getEnv("STORAGE_TYPE", "sqlite"),
		Postgres: PostgresConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", defaultSQLitePath()),
		},
	}
	if cfg.Postgres.URL != "" && cfg.Type == "sqlite" {
		cfg.Type = "postgres"
	}
	return cfg
}

// LoadProject loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func LoadProject() (*ProjectConfig, string, error) {
	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			project, err := loadProjectFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return project, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

func loadProjectFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var project ProjectConfig
	if _, err := toml.Decode(string(data), &project); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	return &project, nil
}

// loadProjectSilent loads the project config without failing on a missing
// file. Parse failures are surfaced as a warning since they are actionable.
func loadProjectSilent() *ProjectConfig {
	project, _, err := LoadProject()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return project
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./deployline.db"
	}
	return home + "/.deployline/deployments.db"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
