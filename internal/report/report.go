// Package report renders deployment outcomes for operators, as text tables
// or JSON. Report rendering never fails a pipeline run: the deployment is
// already recorded by the time a report is written, so I/O problems here are
// logged and swallowed.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/deployline/deployline/internal/storage"
	"github.com/deployline/deployline/internal/verifier"
)

// Reporter writes human or machine readable deployment summaries.
type Reporter struct {
	out    io.Writer
	json   bool
	logger *slog.Logger
}

// New creates a Reporter writing to out. With jsonOutput set, every report
// is a single indented JSON document instead of a table.
func New(out io.Writer, jsonOutput bool, logger *slog.Logger) *Reporter {
	return &Reporter{out: out, json: jsonOutput, logger: logger}
}

// deploymentReport is the JSON shape of a single deployment summary.
type deploymentReport struct {
	Contract        string `json:"contract"`
	Network         string `json:"network"`
	ChainID         uint64 `json:"chainId"`
	Address         string `json:"address"`
	TxHash          string `json:"txHash"`
	BlockNumber     int64  `json:"blockNumber,omitempty"`
	Deployer        string `json:"deployer,omitempty"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
	DeployedAt      string `json:"deployedAt,omitempty"`
	VerifyStatus    string `json:"verifyStatus,omitempty"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	VerifiedAt      string `json:"verifiedAt,omitempty"`
}

func toReport(d *storage.Deployment) deploymentReport {
	return deploymentReport{
		Contract:        d.ContractName,
		Network:         d.Network,
		ChainID:         d.ChainID,
		Address:         d.Address,
		TxHash:          d.TxHash,
		BlockNumber:     d.BlockNumber,
		Deployer:        d.DeployerAddress,
		CompilerVersion: d.CompilerVersion,
		DeployedAt:      d.DeployedAt,
		VerifyStatus:    d.VerifyStatus,
		ExplorerURL:     d.ExplorerURL,
		VerifiedAt:      d.VerifiedAt,
	}
}

// Deployment renders a single deployment record.
func (r *Reporter) Deployment(d *storage.Deployment) {
	if r.json {
		r.writeJSON(toReport(d))
		return
	}

	r.printf("\nContract:  %s\n", d.ContractName)
	r.printf("Network:   %s (chain %d)\n", d.Network, d.ChainID)
	r.printf("Address:   %s\n", d.Address)
	r.printf("Tx Hash:   %s\n", d.TxHash)
	if d.BlockNumber > 0 {
		r.printf("Block:     %d\n", d.BlockNumber)
	}
	if d.DeployerAddress != "" {
		r.printf("Deployer:  %s\n", d.DeployerAddress)
	}
	if d.CompilerVersion != "" {
		r.printf("Compiler:  %s\n", d.CompilerVersion)
	}
	if d.DeployedAt != "" {
		r.printf("Deployed:  %s\n", d.DeployedAt)
	}
	r.printf("Verified:  %s\n", verifyLabel(d.VerifyStatus))
	if d.ExplorerURL != "" {
		r.printf("Source:    %s\n", d.ExplorerURL)
	}
}

// Verification renders the outcome of a verification attempt for a record.
func (r *Reporter) Verification(d *storage.Deployment, res *verifier.Result) {
	if r.json {
		rep := toReport(d)
		rep.VerifyStatus = string(res.Status)
		if res.ExplorerURL != "" {
			rep.ExplorerURL = res.ExplorerURL
		}
		r.writeJSON(rep)
		return
	}

	switch res.Status {
	case verifier.StatusVerified:
		r.printf("✅ %s verified\n", d.ContractName)
		if res.ExplorerURL != "" {
			r.printf("   %s\n", res.ExplorerURL)
		}
	case verifier.StatusPending:
		r.printf("⚠️  %s verification still pending\n", d.ContractName)
		if res.Message != "" {
			r.printf("   %s\n", res.Message)
		}
	case verifier.StatusFailed:
		r.printf("❌ %s verification failed\n", d.ContractName)
		if res.Message != "" {
			r.printf("   %s\n", res.Message)
		}
	}
}

// List renders recent deployments, most recent first.
func (r *Reporter) List(deployments []storage.Deployment) {
	if r.json {
		reports := make([]deploymentReport, 0, len(deployments))
		for i := range deployments {
			reports = append(reports, toReport(&deployments[i]))
		}
		r.writeJSON(reports)
		return
	}

	if len(deployments) == 0 {
		r.printf("No deployments recorded\n")
		return
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTRACT\tNETWORK\tADDRESS\tTX\tVERIFIED\tDEPLOYED")
	for _, d := range deployments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ContractName, d.Network, truncateHash(d.Address), truncateHash(d.TxHash),
			verifyLabel(d.VerifyStatus), d.DeployedAt)
	}
	if err := w.Flush(); err != nil {
		r.logger.Warn("failed to write report", "err", err)
	}
}

func (r *Reporter) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(r.out, format, args...); err != nil {
		r.logger.Warn("failed to write report", "err", err)
	}
}

func (r *Reporter) writeJSON(v any) {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		r.logger.Warn("failed to write report", "err", err)
	}
}

func verifyLabel(status string) string {
	switch status {
	case "verified":
		return "yes"
	case "pending":
		return "pending"
	case "failed":
		return "failed"
	default:
		return "no"
	}
}

func truncateHash(s string) string {
	if len(s) <= 14 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
