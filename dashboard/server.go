// Package dashboard serves the supply-chain dashboard page and its JSON API.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/supplychain-copilot/copilot/copilot"
	"github.com/supplychain-copilot/copilot/dashboard/auth"
	"github.com/supplychain-copilot/copilot/planner"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config controls the HTTP server.
type Config struct {
	Addr           string   `yaml:"addr" split_words:"true"`
	CORSOrigins    []string `yaml:"cors_origins" split_words:"true"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" split_words:"true"` // 0 disables rate limiting
	RateLimitBurst int      `yaml:"rate_limit_burst" split_words:"true"`
	RequireAuth    bool     `yaml:"require_auth" split_words:"true"`
	MaxUploadMB    int64    `yaml:"max_upload_mb" split_words:"true"`
	Release        bool     `yaml:"release" split_words:"true"`
}

// DefaultConfig listens on :8080 with a permissive CORS policy.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		MaxUploadMB:    64,
	}
}

// Validate checks the server settings.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be non-negative, got %f", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("server.rate_limit_burst must be >= 1 when rate limiting, got %d", c.RateLimitBurst)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg     Config
	engine  *gin.Engine
	planner *planner.Planner
	copilot *copilot.Copilot
	auth    *auth.Service // nil disables the /api/auth routes
	metrics *Metrics
}

// New wires routes and middleware.
func New(cfg Config, p *planner.Planner, cp *copilot.Copilot, authSvc *auth.Service) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RequireAuth && authSvc == nil {
		return nil, errors.New("server.require_auth needs a store for users and sessions")
	}
	if cp == nil {
		cp = copilot.New(p, nil)
	}
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{cfg: cfg, planner: p, copilot: cp, auth: authSvc, metrics: NewMetrics()}
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(gin.Recovery(), requestLogger(), s.metrics.Middleware(), corsMiddleware(cfg.CORSOrigins))
	if cfg.RateLimitRPS > 0 {
		r.Use(rateLimit(newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	}
	r.MaxMultipartMemory = 8 << 20

	r.GET("/", s.index)
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	if authSvc != nil {
		a := api.Group("/auth")
		a.POST("/register", s.register)
		a.POST("/login", s.login)
		a.POST("/logout", s.logout)
	}
	protected := api.Group("")
	if cfg.RequireAuth {
		protected.Use(requireSession(authSvc))
	}
	protected.GET("/datasets", s.listDatasets)
	protected.POST("/datasets", s.uploadDataset)
	protected.GET("/datasets/:id/summary", s.datasetSummary)
	protected.GET("/datasets/:id/forecast", s.datasetForecast)
	protected.POST("/simulations", s.createSimulation)
	protected.GET("/simulations", s.listSimulations)
	protected.GET("/simulations/:id", s.getSimulation)
	protected.GET("/simulations/:id/records", s.simulationRecords)
	protected.GET("/simulations/:id/inventory", s.simulationInventory)
	protected.POST("/routes", s.optimizeRoute)
	protected.POST("/ask", s.ask)

	s.engine = r
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("dashboard: listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logrus.Info("dashboard: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
