package compiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCounterArtifact writes a minimal Foundry artifact for a Counter
// contract under dir/out/Counter.sol/Counter.json and returns its path.
func writeCounterArtifact(t *testing.T, dir string) string {
	t.Helper()

	rawMetadata := map[string]any{
		"compiler": map[string]any{"version": "0.8.28+commit.7893614a"},
		"language": "Solidity",
		"settings": map[string]any{
			"compilationTarget": map[string]string{"src/Counter.sol": "Counter"},
			"evmVersion":        "paris",
			"optimizer":         map[string]any{"enabled": true, "runs": 200},
		},
	}
	metadataJSON, err := json.Marshal(rawMetadata)
	require.NoError(t, err)

	artifact := map[string]any{
		"abi":              json.RawMessage(`[{"type":"function","name":"increment","inputs":[],"outputs":[]}]`),
		"bytecode":         map[string]string{"object": "0x6080604052348015600e575f5ffd5b50"},
		"deployedBytecode": map[string]string{"object": "0x6080604052"},
		"rawMetadata":      string(metadataJSON),
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	require.NoError(t, err)

	artifactDir := filepath.Join(dir, "out", "Counter.sol")
	require.NoError(t, os.MkdirAll(artifactDir, 0755))
	path := filepath.Join(artifactDir, "Counter.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// writeCounterBuildInfo writes a build-info file whose output covers the
// Counter contract.
func writeCounterBuildInfo(t *testing.T, dir string) {
	t.Helper()

	bi := map[string]any{
		"solcLongVersion": "0.8.28+commit.7893614a",
		"input": map[string]any{
			"language": "Solidity",
			"sources":  map[string]any{"src/Counter.sol": map[string]string{"content": "contract Counter {}"}},
			"settings": map[string]any{"optimizer": map[string]any{"enabled": true, "runs": 200}},
			"version":  1, // Foundry-specific key the verifier must strip
		},
		"output": map[string]any{
			"contracts": map[string]any{
				"src/Counter.sol": map[string]any{"Counter": map[string]any{}},
			},
		},
	}
	data, err := json.Marshal(bi)
	require.NoError(t, err)

	buildInfoDir := filepath.Join(dir, "out", "build-info")
	require.NoError(t, os.MkdirAll(buildInfoDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(buildInfoDir, "abc123.json"), data, 0644))
}

func TestParseArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeCounterArtifact(t, dir)

	artifact, err := ParseArtifact(path)
	require.NoError(t, err)

	assert.Equal(t, "Counter", artifact.Name)
	assert.Equal(t, "src/Counter.sol", artifact.SourcePath)
	assert.Equal(t, "0.8.28+commit.7893614a", artifact.CompilerVersion)
	assert.Equal(t, "paris", artifact.EVMVersion)
	assert.True(t, artifact.Optimizer.Enabled)
	assert.Equal(t, 200, artifact.Optimizer.Runs)
	assert.NotEmpty(t, artifact.Bytecode)
	assert.NotEmpty(t, artifact.DeployedBytecode)
	assert.NotEmpty(t, artifact.ABI)
}

func TestParseArtifact_NoBytecode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ICounter.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"abi":[],"bytecode":{"object":"0x"}}`), 0644))

	_, err := ParseArtifact(path)
	assert.ErrorContains(t, err, "no bytecode")
}

func TestParseArtifact_MissingFile(t *testing.T) {
	_, err := ParseArtifact(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestParseArtifact_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := ParseArtifact(path)
	assert.ErrorContains(t, err, "parsing artifact")
}

func TestVerificationInput(t *testing.T) {
	dir := t.TempDir()
	writeCounterBuildInfo(t, dir)

	f := New("forge", dir, testLogger(t))
	ref := ContractRef{SourcePath: "src/Counter.sol", Name: "Counter"}

	vi, err := f.VerificationInput(ref)
	require.NoError(t, err)

	assert.Equal(t, "0.8.28+commit.7893614a", vi.SolcLongVersion)
	assert.Equal(t, "Counter", vi.ContractName)

	// Foundry-specific keys must be stripped from standard JSON input
	var input map[string]any
	require.NoError(t, json.Unmarshal(vi.StandardJSON, &input))
	assert.NotContains(t, input, "version")
	assert.Contains(t, input, "language")
	assert.Contains(t, input, "sources")
}

func TestVerificationInput_ContractNotInBuildInfo(t *testing.T) {
	dir := t.TempDir()
	writeCounterBuildInfo(t, dir)

	f := New("forge", dir, testLogger(t))
	_, err := f.VerificationInput(ContractRef{SourcePath: "src/Other.sol", Name: "Other"})
	assert.ErrorContains(t, err, "build-info not found")
}

func TestArtifact_LoadsFromProjectLayout(t *testing.T) {
	dir := t.TempDir()
	writeCounterArtifact(t, dir)

	f := New("forge", dir, testLogger(t))
	artifact, err := f.Artifact(ContractRef{SourcePath: "src/Counter.sol", Name: "Counter"})
	require.NoError(t, err)
	assert.Equal(t, "Counter", artifact.Name)
}
