package role

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rolegate/rolegate/internal/idgen"
	"github.com/rolegate/rolegate/internal/tenant"
	"github.com/rolegate/rolegate/internal/usdc"
	"github.com/rolegate/rolegate/internal/validation"
)

// Handler provides HTTP endpoints for role listings.
type Handler struct {
	store   Store
	tenants tenant.Store
}

// NewHandler creates a new role handler.
func NewHandler(store Store, tenants tenant.Store) *Handler {
	return &Handler{store: store, tenants: tenants}
}

// RegisterRoutes sets up role routes on a service-token protected group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tenants/:guildID/roles", h.CreateRole)
	r.GET("/tenants/:guildID/roles", h.ListRoles)
	r.GET("/tenants/:guildID/roles/:roleID", h.GetRole)
	r.PATCH("/tenants/:guildID/roles/:roleID", h.UpdateRole)
	r.DELETE("/tenants/:guildID/roles/:roleID", h.DeleteRole)
}

type roleRequest struct {
	DiscordRoleID string  `json:"discordRoleId" binding:"required"`
	ChannelID     string  `json:"channelId"`
	Name          string  `json:"name" binding:"required"`
	DailyRate     string  `json:"dailyRate" binding:"required"` // decimal USDC, e.g. "2.50"
	Durations     []int64 `json:"durations" binding:"required"`
}

// CreateRole handles POST /v1/tenants/:guildID/roles.
func (h *Handler) CreateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "discordRoleId, name, dailyRate and durations required"})
		return
	}

	tn, ok := h.loadTenant(c)
	if !ok {
		return
	}

	rate, durations, ok := h.parsePricing(c, req.DailyRate, req.Durations)
	if !ok {
		return
	}

	now := time.Now()
	r := &Role{
		ID:              idgen.WithPrefix("role_"),
		TenantID:        tn.ID,
		DiscordRoleID:   req.DiscordRoleID,
		ChannelID:       req.ChannelID,
		Name:            validation.SanitizeString(req.Name, 200),
		DailyRateAtomic: rate,
		Durations:       durations,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.store.Create(c.Request.Context(), r); err != nil {
		if errors.Is(err, ErrRoleTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "role_taken", "message": "discord role already listed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create role"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"role": r})
}

// ListRoles handles GET /v1/tenants/:guildID/roles.
func (h *Handler) ListRoles(c *gin.Context) {
	tn, ok := h.loadTenant(c)
	if !ok {
		return
	}

	roles, err := h.store.ListByTenant(c.Request.Context(), tn.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list roles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles, "count": len(roles)})
}

// GetRole handles GET /v1/tenants/:guildID/roles/:roleID.
func (h *Handler) GetRole(c *gin.Context) {
	tn, ok := h.loadTenant(c)
	if !ok {
		return
	}

	r, err := h.store.GetByDiscordRole(c.Request.Context(), tn.ID, c.Param("roleID"))
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "role_not_found", "message": "role not listed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load role"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": r})
}

// UpdateRole handles PATCH /v1/tenants/:guildID/roles/:roleID.
func (h *Handler) UpdateRole(c *gin.Context) {
	var req struct {
		ChannelID *string `json:"channelId"`
		Name      *string `json:"name"`
		DailyRate *string `json:"dailyRate"`
		Durations []int64 `json:"durations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}

	tn, ok := h.loadTenant(c)
	if !ok {
		return
	}

	r, err := h.store.GetByDiscordRole(c.Request.Context(), tn.ID, c.Param("roleID"))
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "role_not_found", "message": "role not listed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load role"})
		return
	}

	if req.ChannelID != nil {
		r.ChannelID = *req.ChannelID
	}
	if req.Name != nil {
		r.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.DailyRate != nil {
		rate, ok := usdc.Parse(*req.DailyRate)
		if !ok || rate.Sign() <= 0 || !rate.IsInt64() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_rate", "message": "dailyRate must be a positive USDC amount"})
			return
		}
		r.DailyRateAtomic = rate.Int64()
	}
	if req.Durations != nil {
		durations, err := NormalizeDurations(req.Durations)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_durations", "message": "at least one positive duration required"})
			return
		}
		r.Durations = durations
	}
	r.UpdatedAt = time.Now()

	if err := h.store.Update(c.Request.Context(), r); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update role"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": r})
}

// DeleteRole handles DELETE /v1/tenants/:guildID/roles/:roleID.
func (h *Handler) DeleteRole(c *gin.Context) {
	tn, ok := h.loadTenant(c)
	if !ok {
		return
	}

	r, err := h.store.GetByDiscordRole(c.Request.Context(), tn.ID, c.Param("roleID"))
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "role_not_found", "message": "role not listed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load role"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), r.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to delete role"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": r.ID})
}

func (h *Handler) loadTenant(c *gin.Context) (*tenant.Tenant, bool) {
	tn, err := h.tenants.GetByGuild(c.Request.Context(), c.Param("guildID"))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "guild not registered"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return nil, false
	}
	return tn, true
}

func (h *Handler) parsePricing(c *gin.Context, dailyRate string, rawDurations []int64) (int64, []int64, bool) {
	rate, ok := usdc.Parse(dailyRate)
	if !ok || rate.Sign() <= 0 || !rate.IsInt64() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_rate", "message": "dailyRate must be a positive USDC amount"})
		return 0, nil, false
	}
	durations, err := NormalizeDurations(rawDurations)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_durations", "message": "at least one positive duration required"})
		return 0, nil, false
	}
	return rate.Int64(), durations, true
}
