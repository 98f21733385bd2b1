package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deployline/deployline/internal/storage"
	"github.com/deployline/deployline/internal/verifier"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleDeployment() *storage.Deployment {
	return &storage.Deployment{
		ContractName:    "Counter",
		Network:         "base",
		ChainID:         8453,
		Address:         "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		TxHash:          "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
		BlockNumber:     23811001,
		DeployerAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		CompilerVersion: "0.8.28+commit.7893614a",
		DeployedAt:      "2026-08-27T10:15:00Z",
		VerifyStatus:    "verified",
		ExplorerURL:     "https://basescan.org/address/0x5FbDB2315678afecb367f032d93F642f64180aa3#code",
	}
}

func TestDeployment_Text(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, false, testLogger(t))

	r.Deployment(sampleDeployment())
	out := buf.String()

	assert.Contains(t, out, "Counter")
	assert.Contains(t, out, "base (chain 8453)")
	assert.Contains(t, out, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	assert.Contains(t, out, "Block:     23811001")
	assert.Contains(t, out, "Verified:  yes")
	assert.Contains(t, out, "#code")
}

func TestDeployment_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true, testLogger(t))

	r.Deployment(sampleDeployment())

	var got deploymentReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Counter", got.Contract)
	assert.Equal(t, uint64(8453), got.ChainID)
	assert.Equal(t, "verified", got.VerifyStatus)
}

func TestVerification_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		result *verifier.Result
		want   string
	}{
		{"verified", &verifier.Result{Status: verifier.StatusVerified, ExplorerURL: "https://basescan.org/address/0xabc#code"}, "✅"},
		{"pending", &verifier.Result{Status: verifier.StatusPending, Message: "run verify again later"}, "⚠️"},
		{"failed", &verifier.Result{Status: verifier.StatusFailed, Message: "bytecode mismatch"}, "❌"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := New(&buf, false, testLogger(t))
			r.Verification(sampleDeployment(), tt.result)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestList_Text(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, false, testLogger(t))

	second := sampleDeployment()
	second.ContractName = "Token"
	second.VerifyStatus = ""
	r.List([]storage.Deployment{*sampleDeployment(), *second})
	out := buf.String()

	assert.Contains(t, out, "CONTRACT")
	assert.Contains(t, out, "Counter")
	assert.Contains(t, out, "Token")
	assert.Contains(t, out, "0x5FbD...0aa3")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "no")
}

func TestList_Empty(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, false, testLogger(t))

	r.List(nil)

	assert.Contains(t, buf.String(), "No deployments recorded")
}

func TestList_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true, testLogger(t))

	r.List([]storage.Deployment{*sampleDeployment()})

	var got []deploymentReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Counter", got[0].Contract)
}

// failWriter errors on every write.
type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("pipe closed") }

func TestWriteErrorsAreSwallowed(t *testing.T) {
	r := New(failWriter{}, false, testLogger(t))

	// Must not panic or return an error path to the caller.
	r.Deployment(sampleDeployment())
	r.List([]storage.Deployment{*sampleDeployment()})
}

func TestTruncateHash(t *testing.T) {
	assert.Equal(t, "0x5FbD...0aa3", truncateHash("0x5FbDB2315678afecb367f032d93F642f64180aa3"))
	assert.Equal(t, "0xshort", truncateHash("0xshort"))
}
