package principal

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rolegate/rolegate/internal/logging"
	"github.com/rolegate/rolegate/internal/network"
	"github.com/rolegate/rolegate/internal/usdc"
)

// BalanceSource reads a wallet's USDC balance on a network.
type BalanceSource interface {
	Balance(ctx context.Context, net *network.Network, address string) (*big.Int, error)
}

// Handler provides HTTP endpoints for principal reads and key export.
type Handler struct {
	svc      *Service
	networks network.Store
	balances BalanceSource // nil disables balance lookups
}

// NewHandler creates a principal handler.
func NewHandler(svc *Service, networks network.Store, balances BalanceSource) *Handler {
	return &Handler{svc: svc, networks: networks, balances: balances}
}

// RegisterRoutes sets up principal routes on a service-token protected group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/principals/:discordID", h.GetPrincipal)
	r.GET("/principals/:discordID/keys/:networkName", h.ExportKey)
}

// GetPrincipal handles GET /v1/principals/:discordID. Reading a principal
// provisions it, and a wallet on every cataloged network, on first touch.
func (h *Handler) GetPrincipal(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := h.svc.Ensure(ctx, c.Param("discordID"), c.Query("username"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load principal"})
		return
	}

	nets, err := h.networks.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list networks"})
		return
	}

	type walletView struct {
		NetworkID   string `json:"networkId"`
		NetworkName string `json:"networkName"`
		PublicKey   string `json:"publicKey"`
		Balance     string `json:"balance,omitempty"`
	}

	wallets := make([]walletView, 0, len(nets))
	for _, net := range nets {
		w, err := h.svc.EnsureWallet(ctx, p, net)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to provision wallet"})
			return
		}

		view := walletView{NetworkID: net.ID, NetworkName: net.Name, PublicKey: w.PublicKey}
		if h.balances != nil && net.IsEVM() {
			if bal, err := h.balances.Balance(ctx, net, w.PublicKey); err == nil {
				view.Balance = usdc.Format(bal)
			} else {
				logging.L(ctx).Warn("balance lookup failed", "network", net.Name, "error", err)
			}
		}
		wallets = append(wallets, view)
	}

	c.JSON(http.StatusOK, gin.H{"principal": p, "wallets": wallets})
}

// ExportKey handles GET /v1/principals/:discordID/keys/:networkName.
// Returns the decrypted custodial key so the bot can hand it to its owner.
func (h *Handler) ExportKey(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := h.svc.GetByDiscordID(ctx, c.Param("discordID"))
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "principal_not_found", "message": "discord user not registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load principal"})
		return
	}

	net, err := h.networks.GetByName(ctx, c.Param("networkName"))
	if err != nil {
		if errors.Is(err, network.ErrNetworkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "network_not_found", "message": "unknown network"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load network"})
		return
	}

	w, err := h.svc.store.GetWallet(ctx, p.ID, net.ID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet_not_found", "message": "no wallet on this network"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load wallet"})
		return
	}

	key, err := h.svc.ExportKey(w)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to decrypt key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"publicKey":  w.PublicKey,
		"privateKey": key,
		"network":    net.Name,
	})
}
