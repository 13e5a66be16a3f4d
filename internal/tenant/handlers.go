package tenant

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rolegate/rolegate/internal/idgen"
	"github.com/rolegate/rolegate/internal/validation"
)

// Handler provides HTTP endpoints for tenant management.
type Handler struct {
	store Store
}

// NewHandler creates a new tenant handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up tenant routes on a service-token protected group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tenants", h.CreateTenant)
	r.GET("/tenants", h.ListTenants)
	r.GET("/tenants/:guildID", h.GetTenant)
	r.PATCH("/tenants/:guildID", h.UpdateTenant)
	r.POST("/tenants/:guildID/subscription", h.RenewSubscription)
}

// CreateTenant handles POST /v1/tenants.
func (h *Handler) CreateTenant(c *gin.Context) {
	var req struct {
		GuildID               string `json:"guildId" binding:"required"`
		Name                  string `json:"name" binding:"required"`
		ReceiverEVMAddress    string `json:"receiverEvmAddress"`
		ReceiverSolanaAddress string `json:"receiverSolanaAddress"`
		Plan                  Plan   `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "guildId and name required"})
		return
	}

	if !validation.ValidSnowflake(req.GuildID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_guild_id", "message": "guildId must be a Discord snowflake"})
		return
	}
	if req.ReceiverEVMAddress != "" && !validation.ValidEVMAddress(req.ReceiverEVMAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_address", "message": "receiverEvmAddress is not a valid address"})
		return
	}
	if req.ReceiverSolanaAddress != "" && !validation.ValidSolanaAddress(req.ReceiverSolanaAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_address", "message": "receiverSolanaAddress is not a valid address"})
		return
	}

	if req.Plan == "" {
		req.Plan = PlanStarter
	}
	if !ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
		return
	}

	terms := TermsForPlan(req.Plan)
	now := time.Now()
	t := &Tenant{
		ID:                    idgen.WithPrefix("ten_"),
		GuildID:               req.GuildID,
		Name:                  validation.SanitizeString(req.Name, 200),
		ReceiverEVMAddress:    req.ReceiverEVMAddress,
		ReceiverSolanaAddress: req.ReceiverSolanaAddress,
		SubscriptionExpiresAt: now.Add(terms.Duration),
		RemainingTxns:         terms.Txns,
		Status:                StatusActive,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := h.store.Create(c.Request.Context(), t); err != nil {
		if errors.Is(err, ErrGuildTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "guild_taken", "message": "guild already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create tenant"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tenant": t})
}

// ListTenants handles GET /v1/tenants.
func (h *Handler) ListTenants(c *gin.Context) {
	tenants, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list tenants"})
		return
	}
	if tenants == nil {
		tenants = []*Tenant{}
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants, "count": len(tenants)})
}

// GetTenant handles GET /v1/tenants/:guildID.
func (h *Handler) GetTenant(c *gin.Context) {
	t, err := h.store.GetByGuild(c.Request.Context(), c.Param("guildID"))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "guild not registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// UpdateTenant handles PATCH /v1/tenants/:guildID. Only receiver addresses
// and the display name are mutable.
func (h *Handler) UpdateTenant(c *gin.Context) {
	var req struct {
		Name                  *string `json:"name"`
		ReceiverEVMAddress    *string `json:"receiverEvmAddress"`
		ReceiverSolanaAddress *string `json:"receiverSolanaAddress"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}

	t, err := h.store.GetByGuild(c.Request.Context(), c.Param("guildID"))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "guild not registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return
	}

	if req.Name != nil {
		t.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.ReceiverEVMAddress != nil {
		if *req.ReceiverEVMAddress != "" && !validation.ValidEVMAddress(*req.ReceiverEVMAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_address", "message": "receiverEvmAddress is not a valid address"})
			return
		}
		t.ReceiverEVMAddress = *req.ReceiverEVMAddress
	}
	if req.ReceiverSolanaAddress != nil {
		if *req.ReceiverSolanaAddress != "" && !validation.ValidSolanaAddress(*req.ReceiverSolanaAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_address", "message": "receiverSolanaAddress is not a valid address"})
			return
		}
		t.ReceiverSolanaAddress = *req.ReceiverSolanaAddress
	}
	t.UpdatedAt = time.Now()

	if err := h.store.Update(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update tenant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// RenewSubscription handles POST /v1/tenants/:guildID/subscription.
// Renewal replaces the quota rather than adding to it and extends from
// the later of now and the current expiry.
func (h *Handler) RenewSubscription(c *gin.Context) {
	var req struct {
		Plan Plan `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "plan required"})
		return
	}
	if !ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
		return
	}

	t, err := h.store.GetByGuild(c.Request.Context(), c.Param("guildID"))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "guild not registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return
	}

	terms := TermsForPlan(req.Plan)
	from := time.Now()
	if t.SubscriptionExpiresAt.After(from) {
		from = t.SubscriptionExpiresAt
	}
	until := from.Add(terms.Duration)

	if err := h.store.ExtendSubscription(c.Request.Context(), t.ID, until, terms.Txns); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to renew subscription"})
		return
	}

	t.SubscriptionExpiresAt = until
	t.RemainingTxns = terms.Txns
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}
