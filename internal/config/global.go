package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig is the user-level configuration stored in
// ~/.deployline/config.yaml. It holds per-user defaults that apply across
// projects; anything project or environment level overrides it.
type GlobalConfig struct {
	Network        string `yaml:"network,omitempty"`
	Keystore       string `yaml:"keystore,omitempty"`
	PasswordFile   string `yaml:"password_file,omitempty"`
	ExplorerAPIKey string `yaml:"explorer_api_key,omitempty"`
}

// globalConfigPath returns ~/.deployline/config.yaml.
func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".deployline", "config.yaml")
}

// LoadGlobal loads the user-level config. A missing file is not an error;
// it returns an empty config.
func LoadGlobal() (*GlobalConfig, string, error) {
	path := globalConfigPath()
	if path == "" {
		return &GlobalConfig{}, "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, path, nil
		}
		return nil, path, err
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, path, nil
}

// SaveGlobal writes the user-level config, creating ~/.deployline if needed.
func SaveGlobal(cfg *GlobalConfig) (string, error) {
	path := globalConfigPath()
	if path == "" {
		return "", fmt.Errorf("cannot resolve home directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	// 0600: may hold an explorer API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}
	return path, nil
}

func loadGlobalSilent() *GlobalConfig {
	cfg, _, err := LoadGlobal()
	if err != nil {
		return nil
	}
	return cfg
}
