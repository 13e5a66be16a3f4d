package grant

import (
	"context"
	"database/sql"
)

// PostgresStore persists grants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed grant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, g *Grant) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO grants (id, principal_id, tenant_id, role_id, network_id,
			duration_sec, expires_at, payer, amount, txn_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		g.ID, g.PrincipalID, g.TenantID, g.RoleID, g.NetworkID,
		g.DurationSec, g.ExpiresAt, g.Payer, g.Amount, g.TxnHash, g.CreatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Grant, error) {
	g, err := scanGrantRow(p.db.QueryRowContext(ctx, `
		SELECT id, principal_id, tenant_id, role_id, network_id,
			duration_sec, expires_at, payer, amount, txn_hash, created_at
		FROM grants WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrGrantNotFound
	}
	return g, err
}

func (p *PostgresStore) ListByPrincipal(ctx context.Context, principalID string) ([]*Grant, error) {
	return p.list(ctx, `
		SELECT id, principal_id, tenant_id, role_id, network_id,
			duration_sec, expires_at, payer, amount, txn_hash, created_at
		FROM grants WHERE principal_id = $1 ORDER BY created_at DESC`, principalID)
}

func (p *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]*Grant, error) {
	return p.list(ctx, `
		SELECT id, principal_id, tenant_id, role_id, network_id,
			duration_sec, expires_at, payer, amount, txn_hash, created_at
		FROM grants WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
}

func (p *PostgresStore) list(ctx context.Context, query, arg string) ([]*Grant, error) {
	rows, err := p.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Grant
	for rows.Next() {
		g, err := scanGrantRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGrantRow(row rowScanner) (*Grant, error) {
	g := &Grant{}
	var payer, txnHash sql.NullString
	err := row.Scan(&g.ID, &g.PrincipalID, &g.TenantID, &g.RoleID, &g.NetworkID,
		&g.DurationSec, &g.ExpiresAt, &payer, &g.Amount, &txnHash, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	if payer.Valid {
		g.Payer = payer.String
	}
	if txnHash.Valid {
		g.TxnHash = txnHash.String
	}
	return g, nil
}

// Migrate creates the grants table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS grants (
			id           TEXT PRIMARY KEY,
			principal_id TEXT NOT NULL,
			tenant_id    TEXT NOT NULL,
			role_id      TEXT NOT NULL,
			network_id   TEXT NOT NULL,
			duration_sec BIGINT NOT NULL,
			expires_at   TIMESTAMPTZ NOT NULL,
			payer        TEXT,
			amount       TEXT NOT NULL,
			txn_hash     TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_grants_principal ON grants(principal_id);
		CREATE INDEX IF NOT EXISTS idx_grants_tenant ON grants(tenant_id);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
