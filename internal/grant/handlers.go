package grant

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rolegate/rolegate/internal/pagination"
	"github.com/rolegate/rolegate/internal/principal"
	"github.com/rolegate/rolegate/internal/tenant"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler exposes read endpoints over grant history.
type Handler struct {
	store      Store
	tenants    tenant.Store
	principals *principal.Service
}

func NewHandler(store Store, tenants tenant.Store, principals *principal.Service) *Handler {
	return &Handler{store: store, tenants: tenants, principals: principals}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:guildID/grants", h.ListTenantGrants)
	r.GET("/principals/:discordID/grants", h.ListPrincipalGrants)
}

// ListTenantGrants handles GET /v1/tenants/:guildID/grants.
func (h *Handler) ListTenantGrants(c *gin.Context) {
	ten, err := h.tenants.GetByGuild(c.Request.Context(), c.Param("guildID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "guild is not registered"})
		return
	}

	grants, err := h.store.ListByTenant(c.Request.Context(), ten.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list grants"})
		return
	}
	h.renderPage(c, grants)
}

// ListPrincipalGrants handles GET /v1/principals/:discordID/grants.
func (h *Handler) ListPrincipalGrants(c *gin.Context) {
	prn, err := h.principals.GetByDiscordID(c.Request.Context(), c.Param("discordID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "principal_not_found", "message": "unknown user"})
		return
	}

	grants, err := h.store.ListByPrincipal(c.Request.Context(), prn.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list grants"})
		return
	}
	h.renderPage(c, grants)
}

// renderPage applies cursor pagination over a newest-first grant list.
func (h *Handler) renderPage(c *gin.Context, grants []*Grant) {
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "limit must be a positive integer"})
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		limit = n
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed cursor"})
		return
	}
	if cursor != nil {
		grants = afterCursor(grants, cursor)
	}

	page, next, more := pagination.ComputePage(grants, limit, func(g *Grant) (time.Time, string) {
		return g.CreatedAt, g.ID
	})

	resp := gin.H{"grants": withActive(page)}
	if more {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

// afterCursor skips entries at or before the cursor position. Lists are
// newest-first, so the page continues with strictly older rows.
func afterCursor(grants []*Grant, cur *pagination.Cursor) []*Grant {
	for i, g := range grants {
		if g.CreatedAt.Before(cur.CreatedAt) {
			return grants[i:]
		}
		if g.CreatedAt.Equal(cur.CreatedAt) && g.ID == cur.ID {
			return grants[i+1:]
		}
	}
	return nil
}

type grantView struct {
	*Grant
	Active bool `json:"active"`
}

// Expiry is computed, not stored; the view derives the active flag at
// read time so no sweep has to flip records off.
func withActive(grants []*Grant) []grantView {
	now := time.Now()
	out := make([]grantView, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantView{Grant: g, Active: g.Active(now)})
	}
	return out
}
