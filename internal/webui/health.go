package webui

import (
	"context"
	"net/http"
	"time"

	"github.com/MacJediWizard/backupctl/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult represents the result of a health check.
type HealthCheckResult struct {
	Status   HealthStatus `json:"status"`
	Duration string       `json:"duration,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status HealthStatus                  `json:"status"`
	Checks map[string]*HealthCheckResult `json:"checks,omitempty"`
}

// StatusChecker reports the backup server's status.
type StatusChecker interface {
	SystemStatus(ctx context.Context) (*models.SystemStatus, error)
}

// HealthHandler handles the health endpoint.
type HealthHandler struct {
	server StatusChecker
	logger zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. server may be nil, in which
// case only the UI itself is reported.
func NewHealthHandler(server StatusChecker, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		server: server,
		logger: logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterPublicRoutes registers the health route.
func (h *HealthHandler) RegisterPublicRoutes(r gin.IRouter) {
	r.GET("/health", h.Overall)
}

// Overall reports whether the UI can reach the backup server.
// GET /health
func (h *HealthHandler) Overall(c *gin.Context) {
	response := &HealthResponse{Status: HealthStatusHealthy}
	if h.server == nil {
		c.JSON(http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	result := h.checkServer(ctx)
	response.Checks = map[string]*HealthCheckResult{"server": result}

	if result.Status == HealthStatusUnhealthy {
		response.Status = HealthStatusUnhealthy
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) checkServer(ctx context.Context) *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{Status: HealthStatusHealthy}

	status, err := h.server.SystemStatus(ctx)
	result.Duration = time.Since(start).String()
	if err != nil {
		h.logger.Warn().Err(err).Msg("backup server health check failed")
		result.Status = HealthStatusUnhealthy
		result.Error = "backup server unreachable"
		return result
	}
	if !status.OK {
		result.Status = HealthStatusUnhealthy
		result.Error = "backup server reports not ok"
	}
	return result
}
