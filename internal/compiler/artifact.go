package compiler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is a compiled contract ready for deployment.
type Artifact struct {
	Name             string
	SourcePath       string
	ABI              json.RawMessage
	Bytecode         []byte
	DeployedBytecode []byte
	CompilerVersion  string // full solc version, e.g. "0.8.28+commit.7893614a"
	EVMVersion       string
	Optimizer        OptimizerConfig
}

// OptimizerConfig contains optimizer settings
type OptimizerConfig struct {
	Enabled bool
	Runs    int
}

// VerificationInput is the compiler metadata an explorer needs to reproduce
// the build: the solc standard JSON input plus the exact compiler version.
type VerificationInput struct {
	ContractName    string
	SourcePath      string
	StandardJSON    json.RawMessage
	SolcLongVersion string
}

// foundryArtifact mirrors the structure of a Foundry artifact JSON file
type foundryArtifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         bytecodeObject  `json:"bytecode"`
	DeployedBytecode bytecodeObject  `json:"deployedBytecode"`
	RawMetadata      string          `json:"rawMetadata"`
}

type bytecodeObject struct {
	Object string `json:"object"`
}

// foundryMetadata mirrors the parsed rawMetadata field
type foundryMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
		EVMVersion        string            `json:"evmVersion"`
		Optimizer         struct {
			Enabled bool `json:"enabled"`
			Runs    int  `json:"runs"`
		} `json:"optimizer"`
	} `json:"settings"`
}

// buildInfo mirrors a Foundry build-info file (hh-sol-build-info-1 format)
type buildInfo struct {
	SolcLongVersion string          `json:"solcLongVersion"`
	Input           json.RawMessage `json:"input"`
	Output          json.RawMessage `json:"output"`
}

// ParseArtifact parses a Foundry artifact file into a deployable Artifact.
func ParseArtifact(artifactPath string) (*Artifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw foundryArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}

	// Interfaces and abstract contracts have no creation bytecode
	if raw.Bytecode.Object == "" || raw.Bytecode.Object == "0x" {
		return nil, fmt.Errorf("contract has no bytecode (likely an interface)")
	}

	bytecode, err := decodeHex(raw.Bytecode.Object)
	if err != nil {
		return nil, fmt.Errorf("decoding bytecode: %w", err)
	}
	deployed, err := decodeHex(raw.DeployedBytecode.Object)
	if err != nil {
		return nil, fmt.Errorf("decoding deployed bytecode: %w", err)
	}

	var metadata foundryMetadata
	if raw.RawMetadata != "" {
		_ = json.Unmarshal([]byte(raw.RawMetadata), &metadata) // Non-fatal, continue without metadata
	}

	artifact := &Artifact{
		Name:             strings.TrimSuffix(filepath.Base(artifactPath), ".json"),
		SourcePath:       firstKey(metadata.Settings.CompilationTarget),
		ABI:              raw.ABI,
		Bytecode:         bytecode,
		DeployedBytecode: deployed,
		CompilerVersion:  metadata.Compiler.Version,
		EVMVersion:       metadata.Settings.EVMVersion,
		Optimizer: OptimizerConfig{
			Enabled: metadata.Settings.Optimizer.Enabled,
			Runs:    metadata.Settings.Optimizer.Runs,
		},
	}
	return artifact, nil
}

// foundryStandardJSONKeysToStrip are top-level keys Foundry adds that the
// Solidity compiler (and explorer verifiers) reject. The standard JSON input
// spec only allows: language, sources, settings.
var foundryStandardJSONKeysToStrip = []string{"allowPaths", "basePath", "includePaths", "version"}

func stripFoundryStandardJSONKeys(input json.RawMessage) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(input, &m); err != nil {
		return nil, err
	}
	for _, key := range foundryStandardJSONKeysToStrip {
		delete(m, key)
	}
	return json.Marshal(m)
}

// loadVerificationInput extracts the standard JSON input and full solc
// version from the build-info whose output contains the requested contract.
func loadVerificationInput(projectDir string, ref ContractRef) (*VerificationInput, error) {
	buildInfoDir := filepath.Join(projectDir, "out", "build-info")

	entries, err := os.ReadDir(buildInfoDir)
	if err != nil {
		return nil, fmt.Errorf("reading build-info directory (run 'forge build --build-info' first): %w", err)
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(buildInfoDir, entry.Name()))
		if err != nil {
			continue
		}

		var bi buildInfo
		if err := json.Unmarshal(data, &bi); err != nil {
			continue
		}

		var output struct {
			Contracts map[string]map[string]json.RawMessage `json:"contracts"`
		}
		if err := json.Unmarshal(bi.Output, &output); err != nil {
			continue
		}
		sourceContracts, ok := output.Contracts[ref.SourcePath]
		if !ok {
			continue
		}
		if _, ok := sourceContracts[ref.Name]; !ok {
			continue
		}

		stdJSON, err := stripFoundryStandardJSONKeys(bi.Input)
		if err != nil {
			continue
		}

		return &VerificationInput{
			ContractName:    ref.Name,
			SourcePath:      ref.SourcePath,
			StandardJSON:    stdJSON,
			SolcLongVersion: bi.SolcLongVersion,
		}, nil
	}

	return nil, fmt.Errorf("build-info not found for contract %s", ref)
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// firstKey returns the first key from a map
func firstKey(m map[string]string) string {
	for k := range m {
		return k
	}
	return ""
}
