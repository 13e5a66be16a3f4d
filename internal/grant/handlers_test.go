package grant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/internal/principal"
	"github.com/rolegate/rolegate/internal/tenant"
)

const testSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func setupHandlerTest(t *testing.T) (*gin.Engine, *MemoryStore, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	tenants := tenant.NewMemoryStore()
	require.NoError(t, tenants.Create(ctx, &tenant.Tenant{ID: "ten_1", GuildID: "123456789012345678"}))

	cipher, err := principal.NewCipher(testSecret)
	require.NoError(t, err)
	principals := principal.NewService(principal.NewMemoryStore(), cipher)
	prn, err := principals.Ensure(ctx, "444444444444444444", "")
	require.NoError(t, err)

	store := NewMemoryStore()
	r := gin.New()
	v1 := r.Group("/v1")
	NewHandler(store, tenants, principals).RegisterRoutes(v1)
	return r, store, prn.ID
}

func TestHandler_ListGrants(t *testing.T) {
	router, store, prnID := setupHandlerTest(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Grant{
		ID: "grt_live", PrincipalID: prnID, TenantID: "ten_1", Amount: "1000000",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, store.Create(ctx, &Grant{
		ID: "grt_lapsed", PrincipalID: prnID, TenantID: "ten_1", Amount: "1000000",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	for _, path := range []string{
		"/v1/tenants/123456789012345678/grants",
		"/v1/principals/444444444444444444/grants",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)

		var resp struct {
			Grants []struct {
				ID     string `json:"id"`
				Active bool   `json:"active"`
			} `json:"grants"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Grants, 2)

		active := map[string]bool{}
		for _, g := range resp.Grants {
			active[g.ID] = g.Active
		}
		assert.True(t, active["grt_live"])
		assert.False(t, active["grt_lapsed"])
	}
}

func TestHandler_ListGrants_Paginated(t *testing.T) {
	router, store, prnID := setupHandlerTest(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Create(ctx, &Grant{
			ID:          "grt_" + string(rune('a'+i)),
			PrincipalID: prnID, TenantID: "ten_1", Amount: "1000000",
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	listPage := func(url string) (ids []string, next string) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", url, nil))
		require.Equal(t, http.StatusOK, w.Code, url)

		var resp struct {
			Grants []struct {
				ID string `json:"id"`
			} `json:"grants"`
			NextCursor string `json:"nextCursor"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		for _, g := range resp.Grants {
			ids = append(ids, g.ID)
		}
		return ids, resp.NextCursor
	}

	// First page: two newest, cursor present.
	ids, next := listPage("/v1/tenants/123456789012345678/grants?limit=2")
	assert.Equal(t, []string{"grt_e", "grt_d"}, ids)
	require.NotEmpty(t, next)

	// Second page continues with strictly older rows.
	ids, next = listPage("/v1/tenants/123456789012345678/grants?limit=2&cursor=" + next)
	assert.Equal(t, []string{"grt_c", "grt_b"}, ids)
	require.NotEmpty(t, next)

	// Final page has no cursor.
	ids, next = listPage("/v1/tenants/123456789012345678/grants?limit=2&cursor=" + next)
	assert.Equal(t, []string{"grt_a"}, ids)
	assert.Empty(t, next)
}

func TestHandler_ListGrants_BadPageParams(t *testing.T) {
	router, _, _ := setupHandlerTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/123456789012345678/grants?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/123456789012345678/grants?cursor=!!!", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ListGrants_NotFound(t *testing.T) {
	router, _, _ := setupHandlerTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/999999999999999999/grants", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/principals/999999999999999999/grants", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ListGrants_Empty(t *testing.T) {
	router, _, _ := setupHandlerTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/123456789012345678/grants", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Grants []json.RawMessage `json:"grants"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Grants)
	assert.Contains(t, w.Body.String(), `"grants":[]`)
}
