package principal

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/internal/network"
)

type stubBalances struct {
	balance *big.Int
	err     error
}

func (s *stubBalances) Balance(_ context.Context, _ *network.Network, _ string) (*big.Int, error) {
	return s.balance, s.err
}

func setupHandlerTest(t *testing.T, balances BalanceSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := NewCipher(testSecret)
	require.NoError(t, err)

	svc := NewService(NewMemoryStore(), c)
	handler := NewHandler(svc, network.NewMemoryStore(), balances)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)
	return r
}

func TestHandler_GetPrincipal_ProvisionsWallets(t *testing.T) {
	router := setupHandlerTest(t, &stubBalances{balance: big.NewInt(1_500_000)})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/principals/444444444444444444", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Principal Principal `json:"principal"`
		Wallets   []struct {
			NetworkName string `json:"networkName"`
			PublicKey   string `json:"publicKey"`
			Balance     string `json:"balance"`
		} `json:"wallets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "444444444444444444", resp.Principal.DiscordID)
	// One wallet per cataloged network.
	assert.Len(t, resp.Wallets, len(network.Defaults()))

	for _, wal := range resp.Wallets {
		assert.NotEmpty(t, wal.PublicKey)
		switch wal.NetworkName {
		case "base", "base-sepolia", "avalanche":
			assert.Equal(t, "1.500000", wal.Balance)
		default:
			assert.Empty(t, wal.Balance)
		}
	}

	// A second read returns the same keys.
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest("GET", "/v1/principals/444444444444444444", nil))
	require.Equal(t, http.StatusOK, w2.Code)

	var resp2 struct {
		Wallets []struct {
			PublicKey string `json:"publicKey"`
		} `json:"wallets"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.Wallets[0].PublicKey, resp2.Wallets[0].PublicKey)
}

func TestHandler_GetPrincipal_BalanceFailureIsSoft(t *testing.T) {
	router := setupHandlerTest(t, &stubBalances{err: errors.New("rpc down")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/principals/444444444444444444", nil))
	// Balance lookup failure never fails the read.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_ExportKey(t *testing.T) {
	router := setupHandlerTest(t, nil)

	// Provision first.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/principals/444444444444444444", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/principals/444444444444444444/keys/base", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		PublicKey  string `json:"publicKey"`
		PrivateKey string `json:"privateKey"`
		Network    string `json:"network"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.PrivateKey, 64)
	assert.Equal(t, "base", resp.Network)
}

func TestHandler_ExportKey_NotFound(t *testing.T) {
	router := setupHandlerTest(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/principals/444444444444444444/keys/base", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Provision, then ask for an unknown network.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/principals/444444444444444444", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/principals/444444444444444444/keys/cardano", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
