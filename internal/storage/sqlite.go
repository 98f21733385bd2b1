package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Deployment log, append-only, keyed by transaction hash
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		contract_name TEXT NOT NULL,
		network TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		tx_hash TEXT NOT NULL UNIQUE,
		block_number INTEGER,
		deployer_address TEXT,
		compiler_version TEXT,
		deployed_at TEXT,
		verify_status TEXT DEFAULT '',
		verify_guid TEXT DEFAULT '',
		explorer_url TEXT DEFAULT '',
		verified_at TEXT DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_address ON deployments(chain_id, address);
	CREATE INDEX IF NOT EXISTS idx_deployments_created ON deployments(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Debug("deployment log migrations complete")
	return nil
}

const deploymentColumns = `id, contract_name, network, chain_id, address, tx_hash, block_number,
	deployer_address, compiler_version, deployed_at,
	verify_status, verify_guid, explorer_url, verified_at, created_at`

// AppendDeployment appends a deployment record
func (s *SQLiteStore) AppendDeployment(ctx context.Context, d *Deployment) error {
	normalize(d)

	query := `
		INSERT INTO deployments (` + deploymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ContractName, d.Network, d.ChainID, d.Address, d.TxHash, d.BlockNumber,
		d.DeployerAddress, d.CompilerVersion, d.DeployedAt,
		d.VerifyStatus, d.VerifyGUID, d.ExplorerURL, d.VerifiedAt, d.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrExists
		}
		return err
	}
	return nil
}

// GetDeploymentByTxHash retrieves a deployment by transaction hash
func (s *SQLiteStore) GetDeploymentByTxHash(ctx context.Context, txHash string) (*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE tx_hash = ?`
	return s.scanOne(s.db.QueryRowContext(ctx, query, txHash))
}

// GetDeploymentByAddress retrieves a deployment by chain ID and contract address
func (s *SQLiteStore) GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE chain_id = ? AND LOWER(address) = LOWER(?)`
	return s.scanOne(s.db.QueryRowContext(ctx, query, chainID, address))
}

// ListDeployments lists deployments, most recent first
func (s *SQLiteStore) ListDeployments(ctx context.Context, limit int) ([]Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []Deployment
	for rows.Next() {
		var d Deployment
		if err := scanDeployment(rows.Scan, &d); err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// UpdateVerification updates a deployment's verification outcome. The
// verified_at timestamp is only set once the contract actually verifies.
func (s *SQLiteStore) UpdateVerification(ctx context.Context, txHash, status, guid, explorerURL string) error {
	verifiedAt := ""
	if status == "verified" {
		verifiedAt = timestamp()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET verify_status = ?, verify_guid = ?, explorer_url = ?, verified_at = ? WHERE tx_hash = ?`,
		status, guid, explorerURL, verifiedAt, txHash,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) scanOne(row *sql.Row) (*Deployment, error) {
	var d Deployment
	err := scanDeployment(row.Scan, &d)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// scanDeployment scans one deployment row in deploymentColumns order
func scanDeployment(scan func(...any) error, d *Deployment) error {
	return scan(
		&d.ID, &d.ContractName, &d.Network, &d.ChainID, &d.Address, &d.TxHash, &d.BlockNumber,
		&d.DeployerAddress, &d.CompilerVersion, &d.DeployedAt,
		&d.VerifyStatus, &d.VerifyGUID, &d.ExplorerURL, &d.VerifiedAt, &d.CreatedAt,
	)
}
