package role

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists roles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed role store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, r *Role) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO roles (id, tenant_id, discord_role_id, channel_id, name,
			daily_rate_atomic, durations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.TenantID, r.DiscordRoleID, r.ChannelID, r.Name,
		r.DailyRateAtomic, pq.Array(r.Durations), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrRoleTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Role, error) {
	return p.scanRole(p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, discord_role_id, channel_id, name,
			daily_rate_atomic, durations, created_at, updated_at
		FROM roles WHERE id = $1`, id))
}

func (p *PostgresStore) GetByDiscordRole(ctx context.Context, tenantID, discordRoleID string) (*Role, error) {
	return p.scanRole(p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, discord_role_id, channel_id, name,
			daily_rate_atomic, durations, created_at, updated_at
		FROM roles WHERE tenant_id = $1 AND discord_role_id = $2`, tenantID, discordRoleID))
}

func (p *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]*Role, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tenant_id, discord_role_id, channel_id, name,
			daily_rate_atomic, durations, created_at, updated_at
		FROM roles WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Role
	for rows.Next() {
		r, err := scanRoleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, r *Role) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE roles SET channel_id = $1, name = $2, daily_rate_atomic = $3,
			durations = $4, updated_at = $5
		WHERE id = $6`,
		r.ChannelID, r.Name, r.DailyRateAtomic, pq.Array(r.Durations), r.UpdatedAt, r.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRoleNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (p *PostgresStore) scanRole(row *sql.Row) (*Role, error) {
	r, err := scanRoleRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	return r, err
}

func scanRoleRow(row rowScanner) (*Role, error) {
	r := &Role{}
	var channelID sql.NullString
	err := row.Scan(&r.ID, &r.TenantID, &r.DiscordRoleID, &channelID, &r.Name,
		&r.DailyRateAtomic, pq.Array(&r.Durations), &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if channelID.Valid {
		r.ChannelID = channelID.String
	}
	return r, nil
}

// Migrate creates the roles table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS roles (
			id                TEXT PRIMARY KEY,
			tenant_id         TEXT NOT NULL,
			discord_role_id   TEXT NOT NULL,
			channel_id        TEXT,
			name              TEXT NOT NULL,
			daily_rate_atomic BIGINT NOT NULL,
			durations         BIGINT[] NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (tenant_id, discord_role_id)
		);
		CREATE INDEX IF NOT EXISTS idx_roles_tenant ON roles(tenant_id);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
