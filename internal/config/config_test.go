package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBaseEnv sets the minimum environment for a valid base config.
func setBaseEnv(t *testing.T) {
	t.Setenv("DEPLOYLINE_RPC_URL", "https://base.example.com")
	t.Setenv("DEPLOYLINE_KEYSTORE", "/keys/deployer.json")
}

func TestLoad_BaseDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load("base")
	require.NoError(t, err)

	assert.Equal(t, uint64(8453), cfg.Network.ChainID)
	assert.Equal(t, "https://base.example.com", cfg.Network.RPCURL)
	assert.Equal(t, "https://basescan.org", cfg.Network.ExplorerBrowserURL)
	assert.Equal(t, "/keys/deployer.json", cfg.Signer.KeystorePath)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "forge", cfg.Compiler.ForgeBin)
}

func TestLoad_UnknownNetwork(t *testing.T) {
	_, err := Load("mordor")

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "network", cfgErr.Field)
}

func TestValidate_MissingRPCURL(t *testing.T) {
	cfg := &Config{
		Network: Network{Name: "base", ChainID: 8453},
		Signer:  SignerConfig{KeystorePath: "/keys/deployer.json"},
	}

	err := cfg.validate(8453)

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "rpcUrl", cfgErr.Field)
}

func TestLoad_ChainIDMismatch(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEPLOYLINE_CHAIN_ID", "1")

	_, err := Load("base")

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "chainId", cfgErr.Field)
	assert.Contains(t, cfgErr.Reason, "8453")
}

func TestLoad_ChainIDNotInteger(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEPLOYLINE_CHAIN_ID", "base")

	_, err := Load("base")

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "chainId", cfgErr.Field)
}

func TestLoad_MissingSigningCredential(t *testing.T) {
	t.Setenv("DEPLOYLINE_RPC_URL", "https://base.example.com")
	t.Setenv("DEPLOYLINE_KEYSTORE", "")
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })

	_, err = Load("base")

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "keystore", cfgErr.Field)
}

func TestLoad_ProjectConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })

	content := `network = "base"
contract = "src/Counter.sol:Counter"

[networks.base]
rpc_url = "https://base-dedicated.example.com"
explorer_api_key = "KEY123"
keystore = "./keystore/deployer.json"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deployline.toml"), []byte(content), 0644))

	cfg, err := Load("base")
	require.NoError(t, err)

	assert.Equal(t, "https://base-dedicated.example.com", cfg.Network.RPCURL)
	assert.Equal(t, "KEY123", cfg.Network.ExplorerAPIKey)
	assert.Equal(t, "./keystore/deployer.json", cfg.Signer.KeystorePath)
}

func TestLoad_EnvBeatsProjectConfig(t *testing.T) {
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })

	content := `[networks.base]
rpc_url = "https://from-toml.example.com"
keystore = "./keystore/deployer.json"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deployline.toml"), []byte(content), 0644))
	t.Setenv("DEPLOYLINE_RPC_URL", "https://from-env.example.com")

	cfg, err := Load("base")
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", cfg.Network.RPCURL)
}

func TestLoad_PostgresFromDatabaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_URL", "postgres://deployline@localhost/deployline")

	cfg, err := Load("base")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Type)
}

func TestNetworkNames(t *testing.T) {
	names := NetworkNames()
	assert.Contains(t, names, "base")
	assert.Contains(t, names, "base-sepolia")
}
