package grant

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/internal/testutil"
)

func seedGrantParents(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO tenants (id, guild_id, name, subscription_expires_at, remaining_txns)
		VALUES ('ten_1', '123456789012345678', 'Degen Lounge', NOW() + INTERVAL '30 days', 100)`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO principals (id, discord_id) VALUES ('prn_1', '444444444444444444')`)
	require.NoError(t, err)
}

func TestPostgresStore_CreateAndList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	seedGrantParents(t, db)

	ctx := context.Background()
	store := NewPostgresStore(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	g := &Grant{
		ID:          "grt_1",
		PrincipalID: "prn_1",
		TenantID:    "ten_1",
		RoleID:      "role_1",
		NetworkID:   "net_base",
		DurationSec: 604800,
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
		Payer:       "0x1111111111111111111111111111111111111111",
		Amount:      "7000000",
		TxnHash:     "0xsettled",
		CreatedAt:   now,
	}
	require.NoError(t, store.Create(ctx, g))

	got, err := store.Get(ctx, "grt_1")
	require.NoError(t, err)
	assert.Equal(t, "7000000", got.Amount)
	assert.Equal(t, "0xsettled", got.TxnHash)
	assert.True(t, got.ExpiresAt.Equal(g.ExpiresAt))

	older := &Grant{
		ID: "grt_0", PrincipalID: "prn_1", TenantID: "ten_1",
		RoleID: "role_1", NetworkID: "net_solana", DurationSec: 86400,
		ExpiresAt: now.Add(24 * time.Hour), Amount: "0",
		CreatedAt: now.Add(-time.Hour),
	}
	require.NoError(t, store.Create(ctx, older))

	byTenant, err := store.ListByTenant(ctx, "ten_1")
	require.NoError(t, err)
	require.Len(t, byTenant, 2)
	assert.Equal(t, "grt_1", byTenant[0].ID, "newest first")

	byPrincipal, err := store.ListByPrincipal(ctx, "prn_1")
	require.NoError(t, err)
	require.Len(t, byPrincipal, 2)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	_, err := store.Get(context.Background(), "grt_missing")
	assert.ErrorIs(t, err, ErrGrantNotFound)
}
