package grant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	g := &Grant{
		ID:          "grt_1",
		PrincipalID: "prn_1",
		TenantID:    "ten_1",
		RoleID:      "role_1",
		NetworkID:   "net_base",
		DurationSec: 86400,
		ExpiresAt:   time.Now().Add(24 * time.Hour).UTC(),
		Payer:       "0x857b06519E91e3A54538791bDbb0E22373e36b66",
		Amount:      "2500000",
		TxnHash:     "0xabc",
	}
	require.NoError(t, store.Create(ctx, g))

	got, err := store.Get(ctx, "grt_1")
	require.NoError(t, err)
	assert.Equal(t, "prn_1", got.PrincipalID)
	assert.Equal(t, "2500000", got.Amount)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "grt_missing")
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestMemoryStore_Lists(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, g := range []*Grant{
		{ID: "grt_1", PrincipalID: "prn_1", TenantID: "ten_1", Amount: "1"},
		{ID: "grt_2", PrincipalID: "prn_1", TenantID: "ten_2", Amount: "2"},
		{ID: "grt_3", PrincipalID: "prn_2", TenantID: "ten_1", Amount: "3"},
	} {
		g.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Create(ctx, g))
	}

	byPrincipal, err := store.ListByPrincipal(ctx, "prn_1")
	require.NoError(t, err)
	require.Len(t, byPrincipal, 2)
	assert.Equal(t, "grt_2", byPrincipal[0].ID, "newest first")

	byTenant, err := store.ListByTenant(ctx, "ten_1")
	require.NoError(t, err)
	require.Len(t, byTenant, 2)
	assert.Equal(t, "grt_3", byTenant[0].ID)

	none, err := store.ListByPrincipal(ctx, "prn_9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGrant_Active(t *testing.T) {
	now := time.Now()
	g := &Grant{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, g.Active(now))
	assert.False(t, g.Active(now.Add(time.Hour)))
	assert.False(t, g.Active(now.Add(2*time.Hour)))
}

func TestMemoryStore_CopiesOnRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Grant{ID: "grt_1", Amount: "10"}))

	got, err := store.Get(ctx, "grt_1")
	require.NoError(t, err)
	got.Amount = "999"

	again, err := store.Get(ctx, "grt_1")
	require.NoError(t, err)
	assert.Equal(t, "10", again.Amount)
}
