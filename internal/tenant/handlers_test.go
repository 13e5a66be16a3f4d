package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest() (*gin.Engine, *MemoryStore) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	handler := NewHandler(store)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)
	return r, store
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateTenant(t *testing.T) {
	router, store := setupHandlerTest()

	w := postJSON(t, router, "/v1/tenants", map[string]any{
		"guildId":            "123456789012345678",
		"name":               "Degen Lounge",
		"receiverEvmAddress": "0x2222222222222222222222222222222222222222",
		"plan":               "growth",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	got, err := store.GetByGuild(context.Background(), "123456789012345678")
	require.NoError(t, err)
	assert.Equal(t, "Degen Lounge", got.Name)
	assert.Equal(t, int64(5000), got.RemainingTxns)
	assert.True(t, got.SubscriptionActive(time.Now()))
}

func TestHandler_ListTenants(t *testing.T) {
	router, _ := setupHandlerTest()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenants":[]`)

	_ = postJSON(t, router, "/v1/tenants", map[string]any{
		"guildId": "123456789012345678",
		"name":    "Degen Lounge",
		"plan":    "growth",
	})

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tenants []Tenant `json:"tenants"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "123456789012345678", resp.Tenants[0].GuildID)
}

func TestHandler_CreateTenant_Invalid(t *testing.T) {
	router, _ := setupHandlerTest()

	t.Run("missing name", func(t *testing.T) {
		w := postJSON(t, router, "/v1/tenants", map[string]any{"guildId": "123456789012345678"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad snowflake", func(t *testing.T) {
		w := postJSON(t, router, "/v1/tenants", map[string]any{"guildId": "abc", "name": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad receiver address", func(t *testing.T) {
		w := postJSON(t, router, "/v1/tenants", map[string]any{
			"guildId":            "123456789012345678",
			"name":               "x",
			"receiverEvmAddress": "not-an-address",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad solana receiver", func(t *testing.T) {
		w := postJSON(t, router, "/v1/tenants", map[string]any{
			"guildId":               "123456789012345678",
			"name":                  "x",
			"receiverSolanaAddress": "0x2222222222222222222222222222222222222222",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown plan", func(t *testing.T) {
		w := postJSON(t, router, "/v1/tenants", map[string]any{
			"guildId": "123456789012345678",
			"name":    "x",
			"plan":    "premium",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_CreateTenant_Conflict(t *testing.T) {
	router, _ := setupHandlerTest()

	body := map[string]any{"guildId": "123456789012345678", "name": "x"}
	w := postJSON(t, router, "/v1/tenants", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, router, "/v1/tenants", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_GetTenant(t *testing.T) {
	router, store := setupHandlerTest()

	_ = store.Create(context.Background(), &Tenant{
		ID:      "ten_1",
		GuildID: "123456789012345678",
		Name:    "Degen Lounge",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/tenants/123456789012345678", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tenant Tenant `json:"tenant"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ten_1", resp.Tenant.ID)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/tenants/999999999999999999", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpdateTenant(t *testing.T) {
	router, store := setupHandlerTest()

	_ = store.Create(context.Background(), &Tenant{
		ID:      "ten_1",
		GuildID: "123456789012345678",
		Name:    "Old Name",
	})

	raw, _ := json.Marshal(map[string]any{
		"name":               "New Name",
		"receiverEvmAddress": "0x3333333333333333333333333333333333333333",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("PATCH", "/v1/tenants/123456789012345678", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, _ := store.GetByGuild(context.Background(), "123456789012345678")
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", got.ReceiverEVMAddress)

	raw, _ = json.Marshal(map[string]any{"receiverSolanaAddress": "not-base58-0OIl"})
	w = httptest.NewRecorder()
	req = httptest.NewRequest("PATCH", "/v1/tenants/123456789012345678", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_RenewSubscription(t *testing.T) {
	router, store := setupHandlerTest()

	expiry := time.Now().Add(10 * 24 * time.Hour)
	_ = store.Create(context.Background(), &Tenant{
		ID:                    "ten_1",
		GuildID:               "123456789012345678",
		SubscriptionExpiresAt: expiry,
		RemainingTxns:         7,
	})

	w := postJSON(t, router, "/v1/tenants/123456789012345678/subscription", map[string]any{"plan": "starter"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, _ := store.Get(context.Background(), "ten_1")
	// Extends from the current expiry, not from now, and resets the quota.
	assert.WithinDuration(t, expiry.Add(30*24*time.Hour), got.SubscriptionExpiresAt, time.Second)
	assert.Equal(t, int64(500), got.RemainingTxns)
}

func TestHandler_RenewSubscription_Lapsed(t *testing.T) {
	router, store := setupHandlerTest()

	_ = store.Create(context.Background(), &Tenant{
		ID:                    "ten_1",
		GuildID:               "123456789012345678",
		SubscriptionExpiresAt: time.Now().Add(-24 * time.Hour),
	})

	w := postJSON(t, router, "/v1/tenants/123456789012345678/subscription", map[string]any{"plan": "unlimited"})
	require.Equal(t, http.StatusOK, w.Code)

	got, _ := store.Get(context.Background(), "ten_1")
	// A lapsed subscription extends from now.
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), got.SubscriptionExpiresAt, 5*time.Second)
	assert.Equal(t, UnlimitedTxns, got.RemainingTxns)
}
