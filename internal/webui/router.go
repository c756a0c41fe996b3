// Package webui serves the create-backup form as a server-rendered page.
package webui

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/MacJediWizard/backupctl/internal/backupform"
	"github.com/MacJediWizard/backupctl/internal/webui/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds configuration for the UI router.
type Config struct {
	// SubmitRate limits form submissions per client IP, in limiter notation ("10-M").
	SubmitRate string
	// MaxBodyBytes caps the size of posted forms.
	MaxBodyBytes int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SubmitRate:   "10-M",
		MaxBodyBytes: 64 << 10,
	}
}

// Dependencies are the collaborators the UI routes call into.
type Dependencies struct {
	Submitter backupform.Submitter
	Status    StatusChecker
	Recorder  backupform.Recorder
	// Gatherer backs /metrics; the route is skipped when nil.
	Gatherer prometheus.Gatherer
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	if deps.Submitter == nil {
		return nil, fmt.Errorf("create router: submitter is required")
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}
	r.Engine.SetHTMLTemplate(tmpl)

	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestID())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.SecurityHeaders())
	r.Engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	rateLimiter, err := middleware.NewRateLimiter(cfg.SubmitRate, logger)
	if err != nil {
		return nil, err
	}

	NewHealthHandler(deps.Status, logger).RegisterPublicRoutes(r.Engine)

	if deps.Gatherer != nil {
		r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	NewFormHandler(deps.Submitter, deps.Recorder, logger).RegisterRoutes(r.Engine, rateLimiter)

	return r, nil
}
