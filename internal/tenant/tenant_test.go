package tenant

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	tn := &Tenant{
		ID:                    "ten_1",
		GuildID:               "123456789012345678",
		Name:                  "Degen Lounge",
		ReceiverEVMAddress:    "0x2222222222222222222222222222222222222222",
		SubscriptionExpiresAt: now.Add(30 * 24 * time.Hour),
		RemainingTxns:         500,
		Status:                StatusActive,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	// Create
	err := store.Create(ctx, tn)
	require.NoError(t, err)

	// Get by ID
	got, err := store.Get(ctx, "ten_1")
	require.NoError(t, err)
	assert.Equal(t, "Degen Lounge", got.Name)
	assert.Equal(t, int64(500), got.RemainingTxns)

	// Get by guild
	got, err = store.GetByGuild(ctx, "123456789012345678")
	require.NoError(t, err)
	assert.Equal(t, "ten_1", got.ID)

	// Update
	got.Name = "Degen Lounge VIP"
	err = store.Update(ctx, got)
	require.NoError(t, err)

	got2, _ := store.Get(ctx, "ten_1")
	assert.Equal(t, "Degen Lounge VIP", got2.Name)
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	base := time.Now()
	_ = store.Create(ctx, &Tenant{ID: "ten_2", GuildID: "200000000000000002", CreatedAt: base.Add(time.Minute)})
	_ = store.Create(ctx, &Tenant{ID: "ten_1", GuildID: "100000000000000001", CreatedAt: base})

	got, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ten_1", got[0].ID)
	assert.Equal(t, "ten_2", got[1].ID)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = store.GetByGuild(ctx, "999999999999999999")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	err = store.Update(ctx, &Tenant{ID: "nonexistent"})
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestMemoryStore_DuplicateGuild(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Create(ctx, &Tenant{ID: "ten_1", GuildID: "123456789012345678"})
	err := store.Create(ctx, &Tenant{ID: "ten_2", GuildID: "123456789012345678"})
	assert.ErrorIs(t, err, ErrGuildTaken)
}

func TestMemoryStore_ConsumeTxn(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Create(ctx, &Tenant{ID: "ten_1", GuildID: "123456789012345678", RemainingTxns: 2})

	require.NoError(t, store.ConsumeTxn(ctx, "ten_1"))
	require.NoError(t, store.ConsumeTxn(ctx, "ten_1"))
	assert.ErrorIs(t, store.ConsumeTxn(ctx, "ten_1"), ErrQuotaExhausted)

	got, _ := store.Get(ctx, "ten_1")
	assert.Equal(t, int64(0), got.RemainingTxns)
}

func TestMemoryStore_ConsumeTxn_Unlimited(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Create(ctx, &Tenant{ID: "ten_1", GuildID: "123456789012345678", RemainingTxns: UnlimitedTxns})

	for i := 0; i < 10; i++ {
		require.NoError(t, store.ConsumeTxn(ctx, "ten_1"))
	}

	got, _ := store.Get(ctx, "ten_1")
	assert.Equal(t, UnlimitedTxns, got.RemainingTxns)
}

func TestMemoryStore_ConsumeTxn_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Create(ctx, &Tenant{ID: "ten_1", GuildID: "123456789012345678", RemainingTxns: 50})

	var wg sync.WaitGroup
	var succeeded atomic.Int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.ConsumeTxn(ctx, "ten_1"); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), succeeded.Load())

	got, _ := store.Get(ctx, "ten_1")
	assert.Equal(t, int64(0), got.RemainingTxns)
}

func TestMemoryStore_ExtendSubscription(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Create(ctx, &Tenant{ID: "ten_1", GuildID: "123456789012345678", RemainingTxns: 3})

	until := time.Now().Add(60 * 24 * time.Hour)
	require.NoError(t, store.ExtendSubscription(ctx, "ten_1", until, 500))

	got, _ := store.Get(ctx, "ten_1")
	assert.WithinDuration(t, until, got.SubscriptionExpiresAt, time.Second)
	assert.Equal(t, int64(500), got.RemainingTxns)

	err := store.ExtendSubscription(ctx, "ten_missing", until, 500)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestSubscriptionActive(t *testing.T) {
	now := time.Now()
	tn := &Tenant{SubscriptionExpiresAt: now.Add(time.Hour)}
	assert.True(t, tn.SubscriptionActive(now))
	assert.False(t, tn.SubscriptionActive(now.Add(2*time.Hour)))
}

func TestHasQuota(t *testing.T) {
	assert.True(t, (&Tenant{RemainingTxns: 1}).HasQuota())
	assert.True(t, (&Tenant{RemainingTxns: UnlimitedTxns}).HasQuota())
	assert.False(t, (&Tenant{RemainingTxns: 0}).HasQuota())
}

func TestTermsForPlan(t *testing.T) {
	assert.Equal(t, int64(500), TermsForPlan(PlanStarter).Txns)
	assert.Equal(t, int64(5000), TermsForPlan(PlanGrowth).Txns)
	assert.Equal(t, UnlimitedTxns, TermsForPlan(PlanUnlimited).Txns)

	// Unknown plan falls back to starter
	assert.Equal(t, int64(500), TermsForPlan(Plan("premium")).Txns)
}

func TestValidPlan(t *testing.T) {
	assert.True(t, ValidPlan(PlanStarter))
	assert.True(t, ValidPlan(PlanGrowth))
	assert.True(t, ValidPlan(PlanUnlimited))
	assert.False(t, ValidPlan(Plan("premium")))
}
