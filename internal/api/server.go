package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tradestream/internal/auth"
	"tradestream/internal/cache"
	"tradestream/internal/common"
	"tradestream/internal/config"
	"tradestream/internal/logger"
	"tradestream/internal/middleware"
	"tradestream/internal/monitoring"
	"tradestream/internal/stability"
	"tradestream/internal/trade"
	"tradestream/internal/validation"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Prober reports the health of a dependency.
type Prober interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Auth   *auth.Service
	Trades *trade.Service
	// Throttle counts login attempts. Nil disables login throttling.
	Throttle cache.RateLimiter
	// Limiter applies the per-client HTTP rate limit. Nil disables it.
	Limiter *stability.RateLimiter
	Metrics *monitoring.Metrics
	// Probes are reported by /health, keyed by dependency name.
	Probes map[string]Prober
	Logger logger.Logger
	Clock  common.Clock
	IDs    common.IDGenerator
}

// Server represents the API server
type Server struct {
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	log     logger.Logger
	metrics *monitoring.Metrics
	probes  map[string]Prober
	clock   common.Clock

	handlers *Handlers
}

// Handlers holds all route handlers
type Handlers struct {
	Auth   *AuthHandler
	Trade  *TradeHandler
	Stream *StreamHandler
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Auth == nil || deps.Trades == nil {
		return nil, fmt.Errorf("auth and trade services are required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics(nil)
	}
	if deps.Clock == nil {
		deps.Clock = common.SystemClock{}
	}
	if deps.IDs == nil {
		deps.IDs = common.UUIDGenerator{}
	}

	if err := validation.RegisterGinRules(); err != nil {
		return nil, fmt.Errorf("failed to register validation rules: %w", err)
	}

	if cfg.App.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  cfg,
		router:  gin.New(),
		log:     deps.Logger.WithField("component", "api"),
		metrics: deps.Metrics,
		probes:  deps.Probes,
		clock:   deps.Clock,
	}

	s.handlers = &Handlers{
		Auth:   NewAuthHandler(deps.Auth, deps.Throttle, cfg.LoginThrottle, s.log),
		Trade:  NewTradeHandler(deps.Trades),
		Stream: NewStreamHandler(deps.Auth, cfg.Stream, deps.Metrics, deps.Clock, deps.IDs, deps.Logger),
	}

	s.setupRoutes(deps.Limiter)

	s.server = &http.Server{
		Addr:           cfg.Server.Addr(),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(limiter *stability.RateLimiter) {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.ErrorHandler(s.log))
	s.router.Use(middleware.RequestLogger(logger.NewRequestLogger(s.log)))
	s.router.Use(s.metrics.MetricsMiddleware())
	s.router.Use(cors.New(corsConfig(s.config.CORS)))
	s.router.Use(middleware.HandleError(s.log))
	if limiter != nil {
		s.router.Use(middleware.RateLimit(limiter))
	}

	if s.config.App.IsDevelopment() {
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if s.config.Monitoring.PrometheusEnabled {
		s.router.GET(s.config.Monitoring.PrometheusPath, gin.WrapH(s.metrics.Handler()))
	}

	s.router.GET("/", s.root)
	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", s.handlers.Auth.Register)
			authGroup.POST("/login", s.handlers.Auth.Login)
		}

		trades := v1.Group("/trades")
		trades.Use(middleware.RequireAuth(s.handlers.Auth.service))
		{
			trades.GET("", s.handlers.Trade.ListTrades)
			trades.POST("", s.handlers.Trade.PlaceTrade)
		}
	}

	ws := s.router.Group("/websocket/v1")
	{
		ws.GET("/trade-stream", s.handlers.Stream.TradeStream)
	}

	s.router.NoRoute(middleware.NotFound)
}

func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.DefaultConfig()
	if len(c.AllowedMethods) > 0 {
		cc.AllowMethods = c.AllowedMethods
	}
	if len(c.AllowedHeaders) > 0 {
		cc.AllowHeaders = c.AllowedHeaders
	}
	cc.AllowCredentials = c.AllowCredentials
	cc.ExposeHeaders = []string{middleware.RequestIDHeader}
	cc.MaxAge = 12 * time.Hour

	wildcard := len(c.AllowedOrigins) == 0
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

// root godoc
// @Summary Service banner
// @Tags System
// @Produce json
// @Success 200 {object} MessageResponse
// @Router / [get]
func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{Message: "Hello Crypto World!"})
}

// health godoc
// @Summary Dependency health
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:   "ok",
		Time:     s.clock.Now().UTC(),
		Services: make(map[string]string, len(s.probes)),
	}
	for name, p := range s.probes {
		if err := p.HealthCheck(ctx); err != nil {
			resp.Status = "degraded"
			resp.Services[name] = "unhealthy"
			s.metrics.SetDependencyHealth(name, false)
			s.log.Warn("Dependency unhealthy", "dependency", name, "error", err.Error())
			continue
		}
		resp.Services[name] = "healthy"
		s.metrics.SetDependencyHealth(name, true)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info("Starting server", "addr", s.server.Addr, "env", s.config.App.Env)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop cancels live stream sessions, which http.Server does not track once
// hijacked, and then shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping server")
	s.handlers.Stream.CloseAll()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
