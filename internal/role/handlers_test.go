package role

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/internal/tenant"
)

func setupHandlerTest(t *testing.T) (*gin.Engine, *MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tenants := tenant.NewMemoryStore()
	require.NoError(t, tenants.Create(context.Background(), &tenant.Tenant{
		ID:      "ten_1",
		GuildID: "123456789012345678",
	}))

	store := NewMemoryStore()
	handler := NewHandler(store, tenants)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)
	return r, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateRole(t *testing.T) {
	router, store := setupHandlerTest(t)

	w := doJSON(t, router, "POST", "/v1/tenants/123456789012345678/roles", map[string]any{
		"discordRoleId": "222222222222222222",
		"channelId":     "333333333333333333",
		"name":          "VIP",
		"dailyRate":     "2.50",
		"durations":     []int64{604800, 86400},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	got, err := store.GetByDiscordRole(context.Background(), "ten_1", "222222222222222222")
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), got.DailyRateAtomic)
	// Durations come back sorted.
	assert.Equal(t, []int64{86400, 604800}, got.Durations)
}

func TestHandler_CreateRole_Invalid(t *testing.T) {
	router, _ := setupHandlerTest(t)

	t.Run("unknown guild", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/v1/tenants/999999999999999999/roles", map[string]any{
			"discordRoleId": "2", "name": "x", "dailyRate": "1", "durations": []int64{86400},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("zero rate", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/v1/tenants/123456789012345678/roles", map[string]any{
			"discordRoleId": "2", "name": "x", "dailyRate": "0", "durations": []int64{86400},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative rate", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/v1/tenants/123456789012345678/roles", map[string]any{
			"discordRoleId": "2", "name": "x", "dailyRate": "-1.00", "durations": []int64{86400},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no durations", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/v1/tenants/123456789012345678/roles", map[string]any{
			"discordRoleId": "2", "name": "x", "dailyRate": "1.00", "durations": []int64{0},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_GetAndListRoles(t *testing.T) {
	router, store := setupHandlerTest(t)

	_ = store.Create(context.Background(), &Role{
		ID: "role_1", TenantID: "ten_1", DiscordRoleID: "222222222222222222", Name: "VIP",
		DailyRateAtomic: 1_000_000, Durations: []int64{86400},
	})

	w := doJSON(t, router, "GET", "/v1/tenants/123456789012345678/roles/222222222222222222", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "role_1", resp.Role.ID)

	w = doJSON(t, router, "GET", "/v1/tenants/123456789012345678/roles", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Equal(t, 1, listResp.Count)

	w = doJSON(t, router, "GET", "/v1/tenants/123456789012345678/roles/999999999999999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpdateRole(t *testing.T) {
	router, store := setupHandlerTest(t)

	_ = store.Create(context.Background(), &Role{
		ID: "role_1", TenantID: "ten_1", DiscordRoleID: "222222222222222222", Name: "VIP",
		DailyRateAtomic: 1_000_000, Durations: []int64{86400},
	})

	w := doJSON(t, router, "PATCH", "/v1/tenants/123456789012345678/roles/222222222222222222", map[string]any{
		"dailyRate": "5.00",
		"durations": []int64{604800},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, _ := store.Get(context.Background(), "role_1")
	assert.Equal(t, int64(5_000_000), got.DailyRateAtomic)
	assert.Equal(t, []int64{604800}, got.Durations)
	assert.Equal(t, "VIP", got.Name) // untouched
}

func TestHandler_DeleteRole(t *testing.T) {
	router, store := setupHandlerTest(t)

	_ = store.Create(context.Background(), &Role{
		ID: "role_1", TenantID: "ten_1", DiscordRoleID: "222222222222222222",
	})

	w := doJSON(t, router, "DELETE", "/v1/tenants/123456789012345678/roles/222222222222222222", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := store.Get(context.Background(), "role_1")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}
