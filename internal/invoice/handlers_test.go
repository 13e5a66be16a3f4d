package invoice

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

	"github.com/rolegate/rolegate/internal/principal"
	"github.com/rolegate/rolegate/internal/role"
	"github.com/rolegate/rolegate/internal/tenant"
)

const testSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func setupHandlerTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()

	tenants := tenant.NewMemoryStore()
	require.NoError(t, tenants.Create(ctx, &tenant.Tenant{ID: "ten_1", GuildID: "123456789012345678"}))

	roles := role.NewMemoryStore()
	require.NoError(t, roles.Create(ctx, &role.Role{
		ID: "role_1", TenantID: "ten_1", DiscordRoleID: "222222222222222222",
		DailyRateAtomic: 2_500_000, Durations: []int64{86400, 604800},
	}))

	cipher, err := principal.NewCipher(testSecret)
	require.NoError(t, err)
	principals := principal.NewService(principal.NewMemoryStore(), cipher)

	handler := NewHandler(NewService(NewMemoryStore()), principals, tenants, roles)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)
	return r
}

func createInvoice(t *testing.T, router *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/invoices", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func validBody() map[string]any {
	return map[string]any{
		"discordId":     "444444444444444444",
		"guildId":       "123456789012345678",
		"discordRoleId": "222222222222222222",
		"durationSec":   86400,
	}
}

func TestHandler_CreateInvoice(t *testing.T) {
	router := setupHandlerTest(t)

	w := createInvoice(t, router, validBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
		Price string `json:"price"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "2.500000", resp.Price)
}

func TestHandler_CreateInvoice_RotatesOnRepeat(t *testing.T) {
	router := setupHandlerTest(t)

	w1 := createInvoice(t, router, validBody())
	w2 := createInvoice(t, router, validBody())
	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, http.StatusOK, w2.Code)

	var r1, r2 struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &r1))
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &r2))
	assert.NotEqual(t, r1.Token, r2.Token)

	// The first token is dead.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/invoices/"+r1.Token, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/invoices/"+r2.Token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_CreateInvoice_Invalid(t *testing.T) {
	router := setupHandlerTest(t)

	t.Run("unknown guild", func(t *testing.T) {
		body := validBody()
		body["guildId"] = "999999999999999999"
		assert.Equal(t, http.StatusNotFound, createInvoice(t, router, body).Code)
	})

	t.Run("unlisted role", func(t *testing.T) {
		body := validBody()
		body["discordRoleId"] = "999999999999999999"
		assert.Equal(t, http.StatusNotFound, createInvoice(t, router, body).Code)
	})

	t.Run("duration not offered", func(t *testing.T) {
		body := validBody()
		body["durationSec"] = 3600
		assert.Equal(t, http.StatusBadRequest, createInvoice(t, router, body).Code)
	})

	t.Run("bad snowflake", func(t *testing.T) {
		body := validBody()
		body["discordId"] = "abc"
		assert.Equal(t, http.StatusBadRequest, createInvoice(t, router, body).Code)
	})
}

func TestHandler_GetInvoice(t *testing.T) {
	router := setupHandlerTest(t)

	w := createInvoice(t, router, validBody())
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/invoices/"+created.Token, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Invoice Invoice `json:"invoice"`
		GuildID string  `json:"guildId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "123456789012345678", resp.GuildID)
	assert.Equal(t, int64(86400), resp.Invoice.DurationSec)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/invoices/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
