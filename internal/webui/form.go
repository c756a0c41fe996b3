package webui

import (
	"net/http"

	"github.com/MacJediWizard/backupctl/internal/backupform"
	"github.com/MacJediWizard/backupctl/internal/webui/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const formTemplate = "create_backup.html"

// FormHandler serves the create-backup page and handles its submissions.
type FormHandler struct {
	submitter backupform.Submitter
	recorder  backupform.Recorder
	logger    zerolog.Logger
}

// NewFormHandler creates a new FormHandler. recorder may be nil.
func NewFormHandler(submitter backupform.Submitter, recorder backupform.Recorder, logger zerolog.Logger) *FormHandler {
	return &FormHandler{
		submitter: submitter,
		recorder:  recorder,
		logger:    logger.With().Str("component", "form_handler").Logger(),
	}
}

// RegisterRoutes registers the form routes. submit wraps the POST route
// with extra middleware such as rate limiting.
func (h *FormHandler) RegisterRoutes(r gin.IRouter, submit ...gin.HandlerFunc) {
	r.GET("/", h.Show)
	r.POST("/", append(submit, h.Submit)...)
}

// Show renders an empty form.
// GET /
func (h *FormHandler) Show(c *gin.Context) {
	c.HTML(http.StatusOK, formTemplate, newFormPage(formInput{}).snapshot())
}

// Submit runs the posted form through the controller and renders the result.
// POST /
func (h *FormHandler) Submit(c *gin.Context) {
	var input formInput
	if err := c.ShouldBind(&input); err != nil {
		h.logger.Warn().Err(err).Msg("failed to bind form")
		c.String(http.StatusBadRequest, "Invalid form submission")
		return
	}

	opts := []backupform.Option{
		backupform.WithLogger(h.logger.With().Str("request_id", c.GetString(middleware.RequestIDKey)).Logger()),
	}
	if h.recorder != nil {
		opts = append(opts, backupform.WithRecorder(h.recorder))
	}

	page := newFormPage(input)
	if _, ok := backupform.Attach(page, h.submitter, opts...); !ok {
		c.String(http.StatusInternalServerError, "Form unavailable")
		return
	}

	err := page.submit(c.Request.Context())
	c.HTML(statusFor(err), formTemplate, page.snapshot())
}

// statusFor maps a submission result to the response status.
func statusFor(err error) int {
	switch backupform.OutcomeOf(err) {
	case backupform.OutcomeSucceeded:
		return http.StatusOK
	case backupform.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
