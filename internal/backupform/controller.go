package backupform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MacJediWizard/backupctl/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Feedback shown to the operator. Technical detail only goes to the log.
const (
	MessageMissingSources = "Please provide at least one source path."
	MessageNoEntries      = "Sources field is empty after parsing. Check separators (; or new lines)."
	MessageStarted        = "Backup has been started successfully."
	MessageRejected       = "Backup did not start correctly. Check logs and history."
	MessageUnexpected     = "Unexpected error while calling API. See the agent log and backend logs."
)

// DefaultBusyLabel is shown on the submit button while the request is in flight.
const DefaultBusyLabel = "Working..."

// Outcome classifies a finished submission attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeInvalid   Outcome = "invalid"
)

// OutcomeOf maps the error returned by HandleSubmit to its Outcome.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSucceeded
	}
	if IsValidation(err) {
		return OutcomeInvalid
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) && subErr.Kind == KindRejected {
		return OutcomeRejected
	}
	return OutcomeFailed
}

// Submitter sends a run request to the backup server.
type Submitter interface {
	RunBackup(ctx context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error)
}

// Recorder observes finished submission attempts.
type Recorder interface {
	RecordSubmission(outcome string, duration time.Duration)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the developer-facing logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRecorder registers a Recorder for finished attempts.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithBusyLabel overrides the in-progress button label.
func WithBusyLabel(label string) Option {
	return func(c *Controller) {
		c.busyLabel = label
	}
}

// Controller drives one create-backup form.
type Controller struct {
	handles   Handles
	submitter Submitter
	recorder  Recorder
	logger    zerolog.Logger
	busyLabel string
	inFlight  atomic.Bool
}

// NewController creates a Controller over already-resolved handles.
func NewController(h Handles, submitter Submitter, opts ...Option) (*Controller, error) {
	c := newController(submitter, opts)
	if h.Sources == nil || h.Destination == nil || h.Upload == nil || h.Message == nil {
		return nil, ErrMissingHandle
	}
	if submitter == nil {
		return nil, errors.New("submitter is required")
	}
	c.handles = h
	return c, nil
}

func newController(submitter Submitter, opts []Option) *Controller {
	c := &Controller{
		submitter: submitter,
		logger:    zerolog.Nop(),
		busyLabel: DefaultBusyLabel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "backup_form").Logger()
	return c
}

// Attach looks up the form on host and binds a Controller to its submit
// event. When the form (or one of its required fields) is missing, Attach
// logs a warning and returns false; nothing is bound.
func Attach(host Host, submitter Submitter, opts ...Option) (*Controller, bool) {
	probe := newController(submitter, opts)

	form, ok := host.LookupForm(FormID)
	if !ok {
		probe.logger.Warn().Str("id", FormID).Msg("create-backup-form not found on page")
		return nil, false
	}

	var h Handles
	var missing []string
	if h.Sources, ok = host.LookupField(SourcesID); !ok {
		missing = append(missing, SourcesID)
	}
	if h.Destination, ok = host.LookupField(DestinationID); !ok {
		missing = append(missing, DestinationID)
	}
	if h.Upload, ok = host.LookupSelector(UploadID); !ok {
		missing = append(missing, UploadID)
	}
	if h.Message, ok = host.LookupMessage(MessageID); !ok {
		missing = append(missing, MessageID)
	}
	if len(missing) > 0 {
		probe.logger.Warn().Strs("missing", missing).Msg("create-backup-form is incomplete, not binding")
		return nil, false
	}
	if btn, ok := host.LookupButton(SubmitID); ok {
		h.Submit = btn
	}

	c, err := NewController(h, submitter, opts...)
	if err != nil {
		probe.logger.Warn().Err(err).Msg("create-backup-form could not be bound")
		return nil, false
	}
	form.OnSubmit(c.HandleSubmit)
	return c, true
}

// HandleSubmit processes one submission of the form. It returns nil when
// the server started the backup, a *ValidationError when the input was
// rejected locally, a *SubmissionError when the call failed or the server
// refused, and ErrSubmissionInProgress when another submission is still
// running. Feedback is always rendered on the form before it returns and
// the submit button always ends up enabled.
func (c *Controller) HandleSubmit(ctx context.Context) (err error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrSubmissionInProgress
	}
	defer c.inFlight.Store(false)

	start := time.Now()
	log := c.logger.With().Str("submission_id", uuid.NewString()).Logger()
	defer func() {
		outcome := OutcomeOf(err)
		if c.recorder != nil {
			c.recorder.RecordSubmission(string(outcome), time.Since(start))
		}
		log.Debug().Str("outcome", string(outcome)).Dur("elapsed", time.Since(start)).Msg("submission finished")
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("backup submission panicked")
			c.showUnexpected(log)
			err = &SubmissionError{Kind: KindTransport, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	c.handles.Message.SetMessage("", SeverityNeutral)
	c.handles.Sources.SetInvalid(false)

	raw := strings.TrimSpace(c.handles.Sources.Value())
	if raw == "" {
		return c.rejectSources(log, ReasonMissingSources, MessageMissingSources)
	}

	sources := ParseSources(raw)
	if len(sources) == 0 {
		return c.rejectSources(log, ReasonNoEntries, MessageNoEntries)
	}

	req := BuildRequest(sources, c.handles.Destination.Value(), c.handles.Upload.Value())
	return c.dispatch(ctx, log, req)
}

func (c *Controller) rejectSources(log zerolog.Logger, reason ValidationReason, message string) error {
	c.handles.Message.SetMessage(message, SeverityError)
	c.handles.Sources.SetInvalid(true)
	c.handles.Sources.Focus()
	log.Debug().Str("reason", string(reason)).Msg("form rejected before submission")
	return &ValidationError{Field: SourcesID, Reason: reason}
}

func (c *Controller) dispatch(ctx context.Context, log zerolog.Logger, req *models.RunBackupRequest) error {
	release := c.beginLoading()
	defer release()

	event := log.Info().Int("sources", len(req.Sources)).Bool("destination", req.Destination != "")
	if req.UploadToDrive != nil {
		event = event.Bool("upload_to_drive", *req.UploadToDrive)
	}
	event.Msg("submitting backup request")

	resp, err := c.submitter.RunBackup(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		log.Error().Err(err).Str("path", models.RunBackupPath).Msg("error while calling backup API")
		c.handles.Message.SetMessage(MessageUnexpected, SeverityError)
		return &SubmissionError{Kind: KindTransport, Err: err}
	}

	if !resp.OK {
		log.Warn().Msg("server reported that the backup did not start")
		c.handles.Message.SetMessage(MessageRejected, SeverityError)
		return &SubmissionError{Kind: KindRejected, Err: errors.New("server response ok is false")}
	}

	success := log.Info()
	if len(resp.Backup) > 0 {
		success = success.RawJSON("backup", resp.Backup)
	}
	success.Msg("backup started")
	c.handles.Message.SetMessage(MessageStarted, SeveritySuccess)
	return nil
}

// showUnexpected renders the generic failure message. A message view that
// panics itself is only logged.
func (c *Controller) showUnexpected(log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("could not render failure message")
		}
	}()
	c.handles.Message.SetMessage(MessageUnexpected, SeverityError)
}

// beginLoading puts the submit button into its busy state and returns the
// function that restores it.
func (c *Controller) beginLoading() func() {
	btn := c.handles.Submit
	if btn == nil {
		return func() {}
	}

	label := btn.Label()
	btn.SetDisabled(true)
	btn.SetBusy(true)
	btn.SetLabel(c.busyLabel)

	return func() {
		btn.SetDisabled(false)
		btn.SetBusy(false)
		btn.SetLabel(label)
	}
}
