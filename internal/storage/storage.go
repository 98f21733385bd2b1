package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deployline/deployline/internal/config"
)

// Store is the append-only deployment log. Records are created once, on a
// confirmed deployment, and never mutated; only the verification outcome is
// updated alongside them.
type Store interface {
	// AppendDeployment appends a record. Returns ErrExists when a record
	// with the same transaction hash is already logged.
	AppendDeployment(ctx context.Context, d *Deployment) error
	GetDeploymentByTxHash(ctx context.Context, txHash string) (*Deployment, error)
	GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*Deployment, error)
	ListDeployments(ctx context.Context, limit int) ([]Deployment, error)
	// UpdateVerification records the explorer verification outcome for the
	// deployment identified by transaction hash.
	UpdateVerification(ctx context.Context, txHash, status, guid, explorerURL string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Deployment is one confirmed contract deployment.
type Deployment struct {
	ID              string
	ContractName    string
	Network         string
	ChainID         uint64
	Address         string
	TxHash          string
	BlockNumber     int64
	DeployerAddress string
	CompilerVersion string
	DeployedAt      string

	// Verification outcome, updated after the record is created
	VerifyStatus string
	VerifyGUID   string
	ExplorerURL  string
	VerifiedAt   string

	CreatedAt string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
