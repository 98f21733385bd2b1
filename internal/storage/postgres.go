package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL. It exists for teams that
// share one deployment log across operators; the SQLite store is the default
// for a single machine.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		contract_name TEXT NOT NULL,
		network TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		address TEXT NOT NULL,
		tx_hash TEXT NOT NULL UNIQUE,
		block_number BIGINT,
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

// AppendDeployment appends a deployment record
func (s *PostgresStore) AppendDeployment(ctx context.Context, d *Deployment) error {
	normalize(d)

	query := `
		INSERT INTO deployments (` + deploymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ContractName, d.Network, d.ChainID, d.Address, d.TxHash, d.BlockNumber,
		d.DeployerAddress, d.CompilerVersion, d.DeployedAt,
		d.VerifyStatus, d.VerifyGUID, d.ExplorerURL, d.VerifiedAt, d.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrExists
		}
		return err
	}
	return nil
}

// GetDeploymentByTxHash retrieves a deployment by transaction hash
func (s *PostgresStore) GetDeploymentByTxHash(ctx context.Context, txHash string) (*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE tx_hash = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, txHash))
}

// GetDeploymentByAddress retrieves a deployment by chain ID and contract address
func (s *PostgresStore) GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE chain_id = $1 AND LOWER(address) = LOWER($2)`
	return s.scanOne(s.db.QueryRowContext(ctx, query, chainID, address))
}

// ListDeployments lists deployments, most recent first
func (s *PostgresStore) ListDeployments(ctx context.Context, limit int) ([]Deployment, error) {
	// id DESC breaks ties between records logged within the same second.
	query := `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY created_at DESC, id DESC LIMIT $1`
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
func (s *PostgresStore) UpdateVerification(ctx context.Context, txHash, status, guid, explorerURL string) error {
	verifiedAt := ""
	if status == "verified" {
		verifiedAt = timestamp()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET verify_status = $1, verify_guid = $2, explorer_url = $3, verified_at = $4 WHERE tx_hash = $5`,
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

func (s *PostgresStore) scanOne(row *sql.Row) (*Deployment, error) {
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
