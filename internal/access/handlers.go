package access

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rolegate/rolegate/internal/invoice"
	"github.com/rolegate/rolegate/internal/network"
	"github.com/rolegate/rolegate/internal/platform"
	"github.com/rolegate/rolegate/internal/role"
	"github.com/rolegate/rolegate/internal/tenant"
	"github.com/rolegate/rolegate/internal/validation"
)

// EventEmitter receives completed grants for fan-out to realtime
// subscribers. Emission is best-effort and never blocks the response.
type EventEmitter interface {
	EmitGrant(data map[string]interface{})
}

// Handler exposes the grant endpoint.
type Handler struct {
	svc    *Service
	events EventEmitter
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// WithEvents attaches a grant event emitter.
func (h *Handler) WithEvents(e EventEmitter) *Handler {
	h.events = e
	return h
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/access", h.GrantAccess)
}

// GrantAccess handles POST /v1/access. Without an X-Payment header the
// response is a 402 challenge; with a valid one the role is granted and the
// settlement receipt is echoed in X-Payment-Response.
func (h *Handler) GrantAccess(c *gin.Context) {
	var req struct {
		DiscordID     string `json:"discordId" binding:"required"`
		GuildID       string `json:"guildId" binding:"required"`
		DiscordRoleID string `json:"discordRoleId" binding:"required"`
		Network       string `json:"network" binding:"required"`
		DurationSec   int64  `json:"durationSec" binding:"required"`
		InvoiceToken  string `json:"invoiceToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	for name, id := range map[string]string{
		"discordId":     req.DiscordID,
		"guildId":       req.GuildID,
		"discordRoleId": req.DiscordRoleID,
	} {
		if !validation.ValidSnowflake(id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": name + " must be a Discord snowflake"})
			return
		}
	}

	result, err := h.svc.Grant(c.Request.Context(), &Request{
		DiscordID:     req.DiscordID,
		GuildID:       req.GuildID,
		DiscordRoleID: req.DiscordRoleID,
		Network:       req.Network,
		DurationSec:   req.DurationSec,
		InvoiceToken:  req.InvoiceToken,
		PaymentHeader: c.GetHeader("X-Payment"),
		Resource:      resourceURL(c),
	})
	if err != nil {
		renderGrantError(c, err)
		return
	}

	if result.SettleHeader != "" {
		c.Header("X-Payment-Response", result.SettleHeader)
		// Some x402 clients only read the lower-case form.
		c.Writer.Header()["x-payment-response"] = []string{result.SettleHeader}
	}

	if h.events != nil {
		h.events.EmitGrant(map[string]interface{}{
			"grantId":     result.Grant.ID,
			"guildId":     req.GuildID,
			"discordId":   req.DiscordID,
			"roleId":      result.Grant.RoleID,
			"network":     req.Network,
			"durationSec": req.DurationSec,
			"expiresAt":   result.Grant.ExpiresAt,
			"amount":      result.Grant.Amount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "grant": result.Grant})
}

func resourceURL(c *gin.Context) string {
	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}

func renderGrantError(c *gin.Context, err error) {
	var payErr *PaymentRequiredError
	if errors.As(err, &payErr) {
		c.JSON(http.StatusPaymentRequired, payErr.Body())
		return
	}

	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "guild is not registered"})
	case errors.Is(err, role.ErrRoleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "role_not_found", "message": "role is not listed for sale"})
	case errors.Is(err, network.ErrNetworkNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "network_not_found", "message": "unknown payment network"})
	case errors.Is(err, invoice.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice_not_found", "message": "invoice expired or already used"})
	case errors.Is(err, tenant.ErrSubscriptionExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscription_expired", "message": "tenant subscription has lapsed"})
	case errors.Is(err, tenant.ErrQuotaExhausted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "quota_exhausted", "message": "tenant has no transactions remaining"})
	case errors.Is(err, role.ErrInvalidDuration):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_duration", "message": "duration is not offered for this role"})
	case errors.Is(err, invoice.ErrInvoiceMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invoice_mismatch", "message": "invoice does not cover this purchase"})
	case errors.Is(err, ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient_balance", "message": "custodial wallet balance is below the price"})
	case errors.Is(err, platform.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "platform_unavailable", "message": "discord gateway is not connected"})
	case errors.Is(err, ErrGrantFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "grant_failed", "message": "role could not be applied"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "something went wrong"})
	}
}
