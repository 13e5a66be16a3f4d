package network

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists networks in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed network store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, n *Network) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO networks (id, name, kind, chain_id, usdc_asset, eip712_name, eip712_version, rpc_url, free_rail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.Name, string(n.Kind), n.ChainID, n.USDCAsset,
		n.EIP712Name, n.EIP712Version, n.RPCURL, n.FreeRail,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrNameTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Network, error) {
	return p.scanNetwork(p.db.QueryRowContext(ctx, `
		SELECT id, name, kind, chain_id, usdc_asset, eip712_name, eip712_version, rpc_url, free_rail
		FROM networks WHERE id = $1`, id))
}

func (p *PostgresStore) GetByName(ctx context.Context, name string) (*Network, error) {
	return p.scanNetwork(p.db.QueryRowContext(ctx, `
		SELECT id, name, kind, chain_id, usdc_asset, eip712_name, eip712_version, rpc_url, free_rail
		FROM networks WHERE name = $1`, name))
}

func (p *PostgresStore) List(ctx context.Context) ([]*Network, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, kind, chain_id, usdc_asset, eip712_name, eip712_version, rpc_url, free_rail
		FROM networks ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Network
	for rows.Next() {
		n, err := scanNetworkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Seed inserts the built-in catalog, skipping rows that already exist.
func (p *PostgresStore) Seed(ctx context.Context) error {
	for _, n := range Defaults() {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO networks (id, name, kind, chain_id, usdc_asset, eip712_name, eip712_version, rpc_url, free_rail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (name) DO NOTHING`,
			n.ID, n.Name, string(n.Kind), n.ChainID, n.USDCAsset,
			n.EIP712Name, n.EIP712Version, n.RPCURL, n.FreeRail,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (p *PostgresStore) scanNetwork(row *sql.Row) (*Network, error) {
	n, err := scanNetworkRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNetworkNotFound
	}
	return n, err
}

func scanNetworkRow(row rowScanner) (*Network, error) {
	n := &Network{}
	var (
		kind    string
		chainID sql.NullInt64
		rpcURL  sql.NullString
	)
	err := row.Scan(&n.ID, &n.Name, &kind, &chainID, &n.USDCAsset,
		&n.EIP712Name, &n.EIP712Version, &rpcURL, &n.FreeRail)
	if err != nil {
		return nil, err
	}
	n.Kind = Kind(kind)
	if chainID.Valid {
		n.ChainID = chainID.Int64
	}
	if rpcURL.Valid {
		n.RPCURL = rpcURL.String
	}
	return n, nil
}

// Migrate creates the networks table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS networks (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL UNIQUE,
			kind           TEXT NOT NULL,
			chain_id       BIGINT,
			usdc_asset     TEXT NOT NULL,
			eip712_name    TEXT NOT NULL DEFAULT '',
			eip712_version TEXT NOT NULL DEFAULT '',
			rpc_url        TEXT,
			free_rail      BOOLEAN NOT NULL DEFAULT FALSE
		);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
