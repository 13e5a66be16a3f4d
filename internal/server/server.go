// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/rolegate/rolegate/internal/access"
	"github.com/rolegate/rolegate/internal/auth"
	"github.com/rolegate/rolegate/internal/config"
	"github.com/rolegate/rolegate/internal/grant"
	"github.com/rolegate/rolegate/internal/health"
	"github.com/rolegate/rolegate/internal/invoice"
	"github.com/rolegate/rolegate/internal/logging"
	"github.com/rolegate/rolegate/internal/metrics"
	"github.com/rolegate/rolegate/internal/network"
	"github.com/rolegate/rolegate/internal/platform"
	"github.com/rolegate/rolegate/internal/principal"
	"github.com/rolegate/rolegate/internal/ratelimit"
	"github.com/rolegate/rolegate/internal/realtime"
	"github.com/rolegate/rolegate/internal/role"
	"github.com/rolegate/rolegate/internal/security"
	"github.com/rolegate/rolegate/internal/tenant"
	"github.com/rolegate/rolegate/internal/validation"
	"github.com/rolegate/rolegate/internal/wallet"
	"github.com/rolegate/rolegate/internal/x402"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	tenants     tenant.Store
	roles       role.Store
	networks    network.Store
	grants      grant.Store
	principals  *principal.Service
	invoices    *invoice.Service
	accessSvc   *access.Service
	facilitator x402.Facilitator
	balances    access.BalanceSource
	granter     platform.Granter
	discord     *platform.Discord // nil when granter was injected
	reader      *wallet.Reader    // nil when balances were injected
	realtimeHub *realtime.Hub
	healthReg   *health.Registry
	rateLimiter *ratelimit.Limiter
	db          *sql.DB // nil if using in-memory
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger
	cancelRun   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGranter sets a custom role granter (for testing)
func WithGranter(g platform.Granter) Option {
	return func(s *Server) {
		s.granter = g
	}
}

// WithFacilitator sets a custom payment facilitator (for testing)
func WithFacilitator(f x402.Facilitator) Option {
	return func(s *Server) {
		s.facilitator = f
	}
}

// WithBalances sets a custom balance source (for testing)
func WithBalances(b access.BalanceSource) Option {
	return func(s *Server) {
		s.balances = b
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may inject granter/facilitator/balances/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Outbound endpoints come from operator config; in production they
	// must not point at loopback or private address space.
	if cfg.IsProduction() {
		for name, endpoint := range map[string]string{
			"FACILITATOR_URL": cfg.FacilitatorURL,
			"BASE_RPC_URL":    cfg.BaseRPCURL,
			"SEPOLIA_RPC_URL": cfg.SepoliaRPCURL,
		} {
			if endpoint == "" {
				continue
			}
			if err := security.ValidateEndpointURL(endpoint); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		tenantStore := tenant.NewPostgresStore(db)
		if err := tenantStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate tenant store", "error", err)
		}
		s.tenants = tenantStore

		roleStore := role.NewPostgresStore(db)
		if err := roleStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate role store", "error", err)
		}
		s.roles = roleStore

		networkStore := network.NewPostgresStore(db)
		if err := networkStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate network store", "error", err)
		}
		if err := networkStore.Seed(ctx); err != nil {
			s.logger.Warn("failed to seed network catalog", "error", err)
		}
		s.networks = networkStore

		principalStore := principal.NewPostgresStore(db)
		if err := principalStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate principal store", "error", err)
		}
		cipher, err := principal.NewCipher(cfg.KeyEncryptionSecret)
		if err != nil {
			return nil, fmt.Errorf("key encryption secret: %w", err)
		}
		s.principals = principal.NewService(principalStore, cipher)

		invoiceStore := invoice.NewPostgresStore(db)
		if err := invoiceStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate invoice store", "error", err)
		}
		s.invoices = invoice.NewService(invoiceStore)

		grantStore := grant.NewPostgresStore(db)
		if err := grantStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate grant store", "error", err)
		}
		s.grants = grantStore
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")

		s.tenants = tenant.NewMemoryStore()
		s.roles = role.NewMemoryStore()
		s.networks = network.NewMemoryStore()
		s.grants = grant.NewMemoryStore()

		cipher, err := principal.NewCipher(cfg.KeyEncryptionSecret)
		if err != nil {
			return nil, fmt.Errorf("key encryption secret: %w", err)
		}
		s.principals = principal.NewService(principal.NewMemoryStore(), cipher)
		s.invoices = invoice.NewService(invoice.NewMemoryStore())
	}

	// Overlay config RPC endpoints onto the network catalog so balance
	// reads work without per-row rpc_url values.
	s.networks = &rpcCatalog{
		Store: s.networks,
		urls: map[string]string{
			"base":         cfg.BaseRPCURL,
			"base-sepolia": cfg.SepoliaRPCURL,
		},
	}

	// Facilitator client for payment verification and settlement
	if s.facilitator == nil {
		s.facilitator = x402.NewFacilitatorClient(cfg.FacilitatorURL)
		s.logger.Info("facilitator configured", "url", cfg.FacilitatorURL)
	}

	// On-chain balance reader
	if s.balances == nil {
		reader, err := wallet.NewReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create balance reader: %w", err)
		}
		s.reader = reader
		s.balances = reader
	}

	// Discord gateway for role delivery
	if s.granter == nil {
		discord, err := platform.NewDiscord(cfg.DiscordToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create discord session: %w", err)
		}
		s.discord = discord
		s.granter = discord
	}

	s.accessSvc = access.NewService(
		s.tenants, s.roles, s.networks, s.grants,
		s.principals, s.invoices, s.facilitator, s.balances, s.granter,
	)

	// Realtime hub for WebSocket grant feed
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	s.setupHealthChecks()

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (the bot backend and dashboard run on their own origins)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
		rlCfg.BurstSize = s.cfg.RateLimitRPS
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket grant feed (dashboards subscribe per guild)
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	// PUBLIC ROUTES
	// The grant endpoint authenticates by payment: without a valid
	// X-Payment header it answers 402, never leaks data.
	accessHandler := access.NewHandler(s.accessSvc).
		WithEvents(&grantEventEmitter{s.realtimeHub})
	accessHandler.RegisterRoutes(v1)

	v1.GET("/networks", s.listNetworks)

	// PROTECTED ROUTES (bot/dashboard backends present the service token)
	protected := v1.Group("")
	protected.Use(auth.RequireServiceToken(s.cfg.ServiceToken))
	{
		tenant.NewHandler(s.tenants).RegisterRoutes(protected)
		role.NewHandler(s.roles, s.tenants).RegisterRoutes(protected)
		principal.NewHandler(s.principals, s.networks, s.balances).RegisterRoutes(protected)
		invoice.NewHandler(s.invoices, s.principals, s.tenants, s.roles).RegisterRoutes(protected)
		grant.NewHandler(s.grants, s.tenants, s.principals).RegisterRoutes(protected)
	}
}

func (s *Server) listNetworks(c *gin.Context) {
	nets, err := s.networks.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "failed to list networks",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"networks": nets, "count": len(nets)})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "RoleGate",
		"description": "Paid Discord role grants settled in on-chain USDC via x402",
		"version":     "0.1.0",
		"currency":    "USDC",
	})
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

func (s *Server) setupHealthChecks() {
	s.healthReg = health.NewRegistry()

	if s.db != nil {
		db := s.db
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}

	granter := s.granter
	s.healthReg.Register("discord", func(ctx context.Context) health.Status {
		if !granter.Ready() {
			return health.Status{Name: "discord", Healthy: false, Detail: "gateway not connected"}
		}
		return health.Status{Name: "discord", Healthy: true}
	})

	facilitatorURL := s.cfg.FacilitatorURL
	s.healthReg.Register("facilitator", func(ctx context.Context) health.Status {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, facilitatorURL+"/supported", nil)
		if err != nil {
			return health.Status{Name: "facilitator", Healthy: false, Detail: err.Error()}
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return health.Status{Name: "facilitator", Healthy: false, Detail: err.Error()}
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 500 {
			return health.Status{Name: "facilitator", Healthy: false, Detail: resp.Status}
		}
		return health.Status{Name: "facilitator", Healthy: true}
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second, // settlement can hold a request up to the 60s challenge window
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Connect the Discord gateway. Role grants fail with 503 until the
	// ready event arrives.
	if s.discord != nil {
		if s.cfg.DiscordToken == "" {
			s.logger.Warn("DISCORD_TOKEN not set, role delivery disabled")
		} else if err := s.discord.Open(); err != nil {
			s.logger.Error("failed to connect discord gateway", "error", err)
		}
	}

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Expired invoices are reaped in the background
	s.invoices.StartPurge(runCtx, time.Minute)

	// DB pool stats for /metrics
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, purge loop)
	if s.cancelRun != nil {
		s.cancelRun()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.discord != nil {
		if err := s.discord.Close(); err != nil {
			s.logger.Error("discord close error", "error", err)
		} else {
			s.logger.Info("discord gateway closed")
		}
	}

	if s.reader != nil {
		s.reader.Close()
		s.logger.Info("rpc connections closed")
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// rpcCatalog overlays config-supplied RPC endpoints onto the network
// catalog. Rows with their own rpc_url win.
type rpcCatalog struct {
	network.Store
	urls map[string]string // by network name
}

func (c *rpcCatalog) overlay(n *network.Network) *network.Network {
	if n.RPCURL == "" {
		if u, ok := c.urls[n.Name]; ok {
			n.RPCURL = u
		}
	}
	return n
}

func (c *rpcCatalog) Get(ctx context.Context, id string) (*network.Network, error) {
	n, err := c.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.overlay(n), nil
}

func (c *rpcCatalog) GetByName(ctx context.Context, name string) (*network.Network, error) {
	n, err := c.Store.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.overlay(n), nil
}

func (c *rpcCatalog) List(ctx context.Context) ([]*network.Network, error) {
	nets, err := c.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range nets {
		c.overlay(n)
	}
	return nets, nil
}

// grantEventEmitter adapts realtime.Hub to access.EventEmitter
type grantEventEmitter struct {
	hub *realtime.Hub
}

func (e *grantEventEmitter) EmitGrant(data map[string]interface{}) {
	if e.hub != nil {
		e.hub.BroadcastGrant(data)
	}
}

var _ access.BalanceSource = (*wallet.Reader)(nil)
