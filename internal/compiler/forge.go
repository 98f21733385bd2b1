// Package compiler invokes the external Solidity toolchain (Foundry's forge)
// and parses its build artifacts. The compiler itself is an external system;
// this package is only the glue around it.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
)

// Error is a hard compiler failure. It aborts the pipeline before any
// network call; no partial compile state is kept.
type Error struct {
	Output string
}

func (e *Error) Error() string {
	return fmt.Sprintf("solidity compilation failed:\n%s", e.Output)
}

// ContractRef identifies one contract in a project: "src/Counter.sol:Counter".
type ContractRef struct {
	SourcePath string
	Name       string
}

func (r ContractRef) String() string {
	return r.SourcePath + ":" + r.Name
}

// ParseContractRef parses a "path/Source.sol:Name" reference.
func ParseContractRef(s string) (ContractRef, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return ContractRef{}, fmt.Errorf("invalid contract reference %q (expected Source.sol:Name)", s)
	}
	ref := ContractRef{SourcePath: s[:idx], Name: s[idx+1:]}
	if !strings.HasSuffix(ref.SourcePath, ".sol") {
		return ContractRef{}, fmt.Errorf("invalid contract reference %q: source path must end in .sol", s)
	}
	return ref, nil
}

// Forge drives forge builds for one project directory.
type Forge struct {
	bin    string
	dir    string
	logger *slog.Logger
}

// New creates a Forge runner
func New(bin, projectDir string, logger *slog.Logger) *Forge {
	return &Forge{bin: bin, dir: projectDir, logger: logger}
}

// Build compiles the project with build-info enabled. Warnings are surfaced
// to the operator but do not abort; a hard compiler error returns *Error.
func (f *Forge) Build(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, f.bin, "build", "--build-info")
	cmd.Dir = f.dir

	out, err := cmd.CombinedOutput()
	output := string(out)

	warnings := extractWarnings(output)
	for _, w := range warnings {
		f.logger.Warn("compiler warning", "warning", w)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return warnings, &Error{Output: output}
	}
	return warnings, nil
}

// Artifact loads the compiled artifact for a contract.
func (f *Forge) Artifact(ref ContractRef) (*Artifact, error) {
	path := filepath.Join(f.dir, "out", filepath.Base(ref.SourcePath), ref.Name+".json")
	artifact, err := ParseArtifact(path)
	if err != nil {
		return nil, fmt.Errorf("loading artifact for %s: %w", ref, err)
	}
	return artifact, nil
}

// VerificationInput loads the standard JSON verification input for a contract.
func (f *Forge) VerificationInput(ref ContractRef) (*VerificationInput, error) {
	return loadVerificationInput(f.dir, ref)
}

// ResolveContract finds the source path for a contract by name, scanning the
// project's out/ directory. Fails when the name is ambiguous across sources.
func (f *Forge) ResolveContract(name string) (ContractRef, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, "out", "*", name+".json"))
	if err != nil {
		return ContractRef{}, err
	}

	var refs []ContractRef
	for _, m := range matches {
		artifact, err := ParseArtifact(m)
		if err != nil {
			continue
		}
		if artifact.SourcePath != "" {
			refs = append(refs, ContractRef{SourcePath: artifact.SourcePath, Name: name})
		}
	}

	switch len(refs) {
	case 0:
		return ContractRef{}, fmt.Errorf("no compiled artifact found for contract %q (run forge build first)", name)
	case 1:
		return refs[0], nil
	default:
		return ContractRef{}, fmt.Errorf("contract name %q is ambiguous across %d sources, pass Source.sol:%s", name, len(refs), name)
	}
}

// extractWarnings pulls compiler warning lines out of forge output
func extractWarnings(output string) []string {
	var warnings []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Warning") || strings.HasPrefix(trimmed, "warning") {
			warnings = append(warnings, trimmed)
		}
	}
	return warnings
}

// CheckVersion verifies the artifact's compiler version against a pinned
// version string like "0.8.28". An empty pin accepts anything.
func CheckVersion(artifactVersion, pinned string) error {
	if pinned == "" {
		return nil
	}
	got := normalizeSolcVersion(artifactVersion)
	want := normalizeSolcVersion(pinned)
	if !semver.IsValid(got) {
		return fmt.Errorf("artifact reports unparseable compiler version %q", artifactVersion)
	}
	if !semver.IsValid(want) {
		return fmt.Errorf("pinned compiler version %q is not valid semver", pinned)
	}
	if semver.Compare(got, want) != 0 {
		return fmt.Errorf("compiler version mismatch: artifact built with %s, config pins %s", artifactVersion, pinned)
	}
	return nil
}

// normalizeSolcVersion converts "0.8.28+commit.7893614a" to "v0.8.28"
func normalizeSolcVersion(v string) string {
	v = strings.TrimPrefix(v, "v")
	if idx := strings.IndexAny(v, "+-"); idx > 0 {
		v = v[:idx]
	}
	return "v" + v
}
