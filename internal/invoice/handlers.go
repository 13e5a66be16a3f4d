package invoice

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rolegate/rolegate/internal/principal"
	"github.com/rolegate/rolegate/internal/role"
	"github.com/rolegate/rolegate/internal/tenant"
	"github.com/rolegate/rolegate/internal/usdc"
	"github.com/rolegate/rolegate/internal/validation"
)

// Handler provides HTTP endpoints for invoices.
type Handler struct {
	svc        *Service
	principals *principal.Service
	tenants    tenant.Store
	roles      role.Store
}

// NewHandler creates an invoice handler.
func NewHandler(svc *Service, principals *principal.Service, tenants tenant.Store, roles role.Store) *Handler {
	return &Handler{svc: svc, principals: principals, tenants: tenants, roles: roles}
}

// RegisterRoutes sets up invoice routes on a service-token protected group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/invoices", h.CreateInvoice)
	r.GET("/invoices/:token", h.GetInvoice)
}

// CreateInvoice handles POST /v1/invoices. Re-requesting the same purchase
// rotates the token and shortens the expiry window.
func (h *Handler) CreateInvoice(c *gin.Context) {
	var req struct {
		DiscordID     string `json:"discordId" binding:"required"`
		GuildID       string `json:"guildId" binding:"required"`
		DiscordRoleID string `json:"discordRoleId" binding:"required"`
		DurationSec   int64  `json:"durationSec" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "discordId, guildId, discordRoleId and durationSec required"})
		return
	}
	if !validation.ValidSnowflake(req.DiscordID) || !validation.ValidSnowflake(req.GuildID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "ids must be Discord snowflakes"})
		return
	}

	ctx := c.Request.Context()

	tn, err := h.tenants.GetByGuild(ctx, req.GuildID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "guild not registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return
	}

	rl, err := h.roles.GetByDiscordRole(ctx, tn.ID, req.DiscordRoleID)
	if err != nil {
		if errors.Is(err, role.ErrRoleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "role_not_found", "message": "role not listed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load role"})
		return
	}

	price, err := rl.PriceFor(req.DurationSec)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_duration", "message": "duration not offered for this role"})
		return
	}

	p, err := h.principals.Ensure(ctx, req.DiscordID, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load principal"})
		return
	}

	inv, err := h.svc.Issue(ctx, p.ID, tn.ID, rl.ID, req.DurationSec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to issue invoice"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     inv.Token,
		"expiresOn": inv.ExpiresOn,
		"price":     usdc.Format(price),
	})
}

// GetInvoice handles GET /v1/invoices/:token. Expired invoices read as
// missing.
func (h *Handler) GetInvoice(c *gin.Context) {
	ctx := c.Request.Context()

	inv, err := h.svc.Lookup(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice_not_found", "message": "invoice missing or expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load invoice"})
		return
	}

	tn, err := h.tenants.Get(ctx, inv.TenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invoice": inv,
		"guildId": tn.GuildID,
	})
}
