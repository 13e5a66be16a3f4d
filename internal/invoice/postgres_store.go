package invoice

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists invoices in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed invoice store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Upsert(ctx context.Context, inv *Invoice, freshUntil, refreshUntil time.Time) (*Invoice, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO invoices (id, token, principal_id, tenant_id, role_id, duration_sec, expires_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (principal_id, tenant_id, role_id) DO UPDATE SET
			token = EXCLUDED.token,
			duration_sec = EXCLUDED.duration_sec,
			expires_on = $9
		RETURNING id, token, principal_id, tenant_id, role_id, duration_sec, expires_on, created_at`,
		inv.ID, inv.Token, inv.PrincipalID, inv.TenantID, inv.RoleID,
		inv.DurationSec, freshUntil, inv.CreatedAt, refreshUntil,
	)
	return scanInvoice(row)
}

func (p *PostgresStore) GetByToken(ctx context.Context, token string, now time.Time) (*Invoice, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, token, principal_id, tenant_id, role_id, duration_sec, expires_on, created_at
		FROM invoices WHERE token = $1 AND expires_on > $2`, token, now)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, ErrInvoiceNotFound
	}
	return inv, err
}

func (p *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (p *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM invoices WHERE expires_on <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanInvoice(row *sql.Row) (*Invoice, error) {
	inv := &Invoice{}
	err := row.Scan(&inv.ID, &inv.Token, &inv.PrincipalID, &inv.TenantID,
		&inv.RoleID, &inv.DurationSec, &inv.ExpiresOn, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Migrate creates the invoices table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS invoices (
			id           TEXT PRIMARY KEY,
			token        TEXT NOT NULL UNIQUE,
			principal_id TEXT NOT NULL,
			tenant_id    TEXT NOT NULL,
			role_id      TEXT NOT NULL,
			duration_sec BIGINT NOT NULL,
			expires_on   TIMESTAMPTZ NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (principal_id, tenant_id, role_id)
		);
		CREATE INDEX IF NOT EXISTS idx_invoices_token ON invoices(token);
		CREATE INDEX IF NOT EXISTS idx_invoices_expiry ON invoices(expires_on);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
