package compiler

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestParseContractRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    ContractRef
		wantErr bool
	}{
		{"simple", "src/Counter.sol:Counter", ContractRef{"src/Counter.sol", "Counter"}, false},
		{"nested path", "src/tokens/Token.sol:Token", ContractRef{"src/tokens/Token.sol", "Token"}, false},
		{"missing name", "src/Counter.sol", ContractRef{}, true},
		{"missing name after colon", "src/Counter.sol:", ContractRef{}, true},
		{"not a sol file", "src/Counter.txt:Counter", ContractRef{}, true},
		{"empty", "", ContractRef{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContractRef(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContractRefString(t *testing.T) {
	ref := ContractRef{SourcePath: "src/Counter.sol", Name: "Counter"}
	assert.Equal(t, "src/Counter.sol:Counter", ref.String())
}

func TestExtractWarnings(t *testing.T) {
	output := `Compiling 2 files with Solc 0.8.28
Solc 0.8.28 finished in 120ms
Warning (2072): Unused local variable.
  --> src/Counter.sol:12:9
Compiler run successful with warnings
`
	warnings := extractWarnings(output)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Unused local variable")
}

func TestExtractWarnings_None(t *testing.T) {
	assert.Empty(t, extractWarnings("Compiler run successful\n"))
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		pinned   string
		wantErr  bool
	}{
		{"no pin accepts anything", "0.8.28+commit.7893614a", "", false},
		{"exact match", "0.8.28+commit.7893614a", "0.8.28", false},
		{"match with v prefix", "0.8.28+commit.7893614a", "v0.8.28", false},
		{"mismatch", "0.8.27+commit.40a35a09", "0.8.28", true},
		{"garbage artifact version", "not-a-version", "0.8.28", true},
		{"garbage pin", "0.8.28+commit.7893614a", "latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersion(tt.artifact, tt.pinned)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveContract(t *testing.T) {
	dir := t.TempDir()
	writeCounterArtifact(t, dir)

	f := New("forge", dir, testLogger(t))

	ref, err := f.ResolveContract("Counter")
	require.NoError(t, err)
	assert.Equal(t, ContractRef{SourcePath: "src/Counter.sol", Name: "Counter"}, ref)

	_, err = f.ResolveContract("Token")
	assert.ErrorContains(t, err, "no compiled artifact")
}

func TestCompileError_IncludesOutput(t *testing.T) {
	err := &Error{Output: "Error (2314): Expected ';' but got '}'"}
	assert.Contains(t, err.Error(), "compilation failed")
	assert.Contains(t, err.Error(), "Expected ';'")
}
