package cli

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNetwork_FlagWins(t *testing.T) {
	networkFlag = "base-sepolia"
	defer func() { networkFlag = "" }()
	t.Setenv("DEPLOYLINE_NETWORK", "base")

	assert.Equal(t, "base-sepolia", getNetwork())
}

func TestGetNetwork_Env(t *testing.T) {
	networkFlag = ""
	t.Setenv("DEPLOYLINE_NETWORK", "base-sepolia")

	assert.Equal(t, "base-sepolia", getNetwork())
}

func TestGetNetwork_ProjectConfig(t *testing.T) {
	networkFlag = ""
	t.Setenv("DEPLOYLINE_NETWORK", "")
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("deployline.toml", []byte("network = \"base-sepolia\"\n"), 0644))

	assert.Equal(t, "base-sepolia", getNetwork())
}

func TestGetNetwork_Default(t *testing.T) {
	networkFlag = ""
	t.Setenv("DEPLOYLINE_NETWORK", "")
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	assert.Equal(t, "base", getNetwork())
}

func TestGetNetwork_GlobalConfig(t *testing.T) {
	networkFlag = ""
	t.Setenv("DEPLOYLINE_NETWORK", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())

	require.NoError(t, os.MkdirAll(home+"/.deployline", 0700))
	require.NoError(t, os.WriteFile(home+"/.deployline/config.yaml", []byte("network: base-sepolia\n"), 0600))

	assert.Equal(t, "base-sepolia", getNetwork())
}

func TestConfigInit(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, runConfigInit("base", "src/Counter.sol:Counter", false))

	content, err := os.ReadFile("deployline.toml")
	require.NoError(t, err)
	assert.Contains(t, string(content), `network = "base"`)
	assert.Contains(t, string(content), `contract = "src/Counter.sol:Counter"`)
	assert.Contains(t, string(content), "[networks.base]")
}

func TestConfigInit_ExistingFileRefused(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("deployline.toml", []byte("network = \"base\"\n"), 0644))

	err := runConfigInit("base", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, runConfigInit("base", "", true), "--force overwrites")
}

func TestConfigInit_UnknownNetwork(t *testing.T) {
	chdir(t, t.TempDir())

	err := runConfigInit("optimism", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown network")
}

func TestResolveContract(t *testing.T) {
	chdir(t, t.TempDir())

	ref, err := resolveContract("src/Counter.sol:Counter")
	require.NoError(t, err)
	assert.Equal(t, "Counter", ref.Name)

	_, err = resolveContract("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no contract specified")

	require.NoError(t, os.WriteFile("deployline.toml", []byte("contract = \"src/Token.sol:Token\"\n"), 0644))
	ref, err = resolveContract("")
	require.NoError(t, err)
	assert.Equal(t, "Token", ref.Name)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "ABCD...WXYZ", maskSecret("ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestSetupLogger(t *testing.T) {
	assert.NotNil(t, setupLogger("debug", "text"))
	assert.NotNil(t, setupLogger("info", "json"))
}

// chdir moves into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
