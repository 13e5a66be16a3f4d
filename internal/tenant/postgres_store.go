package tenant

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO tenants (id, guild_id, name, receiver_evm_address, receiver_solana_address,
			subscription_expires_at, remaining_txns, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.GuildID, t.Name, t.ReceiverEVMAddress, t.ReceiverSolanaAddress,
		t.SubscriptionExpiresAt, t.RemainingTxns, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrGuildTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, guild_id, name, receiver_evm_address, receiver_solana_address,
			subscription_expires_at, remaining_txns, status, created_at, updated_at
		FROM tenants WHERE id = $1`, id))
}

func (p *PostgresStore) GetByGuild(ctx context.Context, guildID string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, guild_id, name, receiver_evm_address, receiver_solana_address,
			subscription_expires_at, remaining_txns, status, created_at, updated_at
		FROM tenants WHERE guild_id = $1`, guildID))
}

func (p *PostgresStore) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, guild_id, name, receiver_evm_address, receiver_solana_address,
			subscription_expires_at, remaining_txns, status, created_at, updated_at
		FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Tenant
	for rows.Next() {
		t, err := scanTenantRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE tenants SET name = $1, receiver_evm_address = $2, receiver_solana_address = $3,
			subscription_expires_at = $4, remaining_txns = $5, status = $6, updated_at = $7
		WHERE id = $8`,
		t.Name, t.ReceiverEVMAddress, t.ReceiverSolanaAddress,
		t.SubscriptionExpiresAt, t.RemainingTxns, string(t.Status), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// ConsumeTxn decrements remaining_txns in a single guarded UPDATE so
// concurrent grants never spend the same unit twice.
func (p *PostgresStore) ConsumeTxn(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE tenants SET remaining_txns = remaining_txns - 1, updated_at = NOW()
		WHERE id = $1 AND remaining_txns > 0`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	// Either the tenant is missing, unlimited, or out of quota.
	var remaining int64
	err = p.db.QueryRowContext(ctx,
		`SELECT remaining_txns FROM tenants WHERE id = $1`, id).Scan(&remaining)
	if err == sql.ErrNoRows {
		return ErrTenantNotFound
	}
	if err != nil {
		return err
	}
	if remaining == UnlimitedTxns {
		return nil
	}
	return ErrQuotaExhausted
}

func (p *PostgresStore) ExtendSubscription(ctx context.Context, id string, until time.Time, txns int64) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE tenants SET subscription_expires_at = $1, remaining_txns = $2, updated_at = NOW()
		WHERE id = $3`, until, txns, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (p *PostgresStore) scanTenant(row *sql.Row) (*Tenant, error) {
	t, err := scanTenantRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	return t, err
}

func scanTenantRow(row rowScanner) (*Tenant, error) {
	t := &Tenant{}
	var (
		status string
		evm    sql.NullString
		solana sql.NullString
	)
	err := row.Scan(&t.ID, &t.GuildID, &t.Name, &evm, &solana,
		&t.SubscriptionExpiresAt, &t.RemainingTxns, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if evm.Valid {
		t.ReceiverEVMAddress = evm.String
	}
	if solana.Valid {
		t.ReceiverSolanaAddress = solana.String
	}
	return t, nil
}

// Migrate creates the tenants table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id                      TEXT PRIMARY KEY,
			guild_id                TEXT NOT NULL UNIQUE,
			name                    TEXT NOT NULL,
			receiver_evm_address    TEXT,
			receiver_solana_address TEXT,
			subscription_expires_at TIMESTAMPTZ NOT NULL,
			remaining_txns          BIGINT NOT NULL DEFAULT 0,
			status                  TEXT NOT NULL DEFAULT 'active',
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tenants_guild ON tenants(guild_id);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
