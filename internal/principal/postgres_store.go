package principal

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists principals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed principal store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, pr *Principal) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO principals (id, discord_id, username, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		pr.ID, pr.DiscordID, pr.Username, pr.CreatedAt, pr.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDiscordIDTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Principal, error) {
	return p.scanPrincipal(p.db.QueryRowContext(ctx, `
		SELECT id, discord_id, username, created_at, updated_at
		FROM principals WHERE id = $1`, id))
}

func (p *PostgresStore) GetByDiscordID(ctx context.Context, discordID string) (*Principal, error) {
	return p.scanPrincipal(p.db.QueryRowContext(ctx, `
		SELECT id, discord_id, username, created_at, updated_at
		FROM principals WHERE discord_id = $1`, discordID))
}

func (p *PostgresStore) CreateWallet(ctx context.Context, w *Wallet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO principal_wallets (id, principal_id, network_id, public_key, encrypted_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (principal_id, network_id) DO NOTHING`,
		w.ID, w.PrincipalID, w.NetworkID, w.PublicKey, w.EncryptedKey, w.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetWallet(ctx context.Context, principalID, networkID string) (*Wallet, error) {
	w := &Wallet{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, principal_id, network_id, public_key, encrypted_key, created_at
		FROM principal_wallets WHERE principal_id = $1 AND network_id = $2`,
		principalID, networkID,
	).Scan(&w.ID, &w.PrincipalID, &w.NetworkID, &w.PublicKey, &w.EncryptedKey, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (p *PostgresStore) ListWallets(ctx context.Context, principalID string) ([]*Wallet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, principal_id, network_id, public_key, encrypted_key, created_at
		FROM principal_wallets WHERE principal_id = $1 ORDER BY network_id`, principalID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Wallet
	for rows.Next() {
		w := &Wallet{}
		if err := rows.Scan(&w.ID, &w.PrincipalID, &w.NetworkID, &w.PublicKey, &w.EncryptedKey, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *PostgresStore) scanPrincipal(row *sql.Row) (*Principal, error) {
	pr := &Principal{}
	var username sql.NullString
	err := row.Scan(&pr.ID, &pr.DiscordID, &username, &pr.CreatedAt, &pr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	if username.Valid {
		pr.Username = username.String
	}
	return pr, nil
}

// Migrate creates the principal tables (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS principals (
			id         TEXT PRIMARY KEY,
			discord_id TEXT NOT NULL UNIQUE,
			username   TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS principal_wallets (
			id            TEXT PRIMARY KEY,
			principal_id  TEXT NOT NULL REFERENCES principals(id),
			network_id    TEXT NOT NULL,
			public_key    TEXT NOT NULL,
			encrypted_key BYTEA NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (principal_id, network_id)
		);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
