package backupform

import (
	"context"
	"sync"
	"time"

	"github.com/MacJediWizard/backupctl/pkg/models"
)

type fakeForm struct {
	handler SubmitHandler
}

func (f *fakeForm) OnSubmit(h SubmitHandler) { f.handler = h }

type fakeField struct {
	value   string
	invalid bool
	focused int
	// panicWith, when set, makes Value panic with it.
	panicWith any
}

func (f *fakeField) Value() string {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.value
}

func (f *fakeField) SetInvalid(invalid bool) { f.invalid = invalid }
func (f *fakeField) Focus()                  { f.focused++ }

type fakeSelector struct {
	value string
}

func (s *fakeSelector) Value() string { return s.value }

type fakeMessage struct {
	text     string
	severity Severity
	history  []string
}

func (m *fakeMessage) SetMessage(text string, severity Severity) {
	m.text = text
	m.severity = severity
	m.history = append(m.history, text)
}

type fakeButton struct {
	label    string
	disabled bool
	busy     bool
}

func (b *fakeButton) Label() string             { return b.label }
func (b *fakeButton) SetLabel(label string)     { b.label = label }
func (b *fakeButton) SetDisabled(disabled bool) { b.disabled = disabled }
func (b *fakeButton) SetBusy(busy bool)         { b.busy = busy }

type fakePage struct {
	form        *fakeForm
	sources     *fakeField
	destination *fakeField
	upload      *fakeSelector
	message     *fakeMessage
	button      *fakeButton

	omit map[string]bool
}

func newFakePage() *fakePage {
	return &fakePage{
		form:        &fakeForm{},
		sources:     &fakeField{},
		destination: &fakeField{},
		upload:      &fakeSelector{},
		message:     &fakeMessage{},
		button:      &fakeButton{label: "+ Create backup"},
		omit:        map[string]bool{},
	}
}

func (p *fakePage) LookupForm(id string) (Form, bool) {
	if id != FormID || p.omit[id] {
		return nil, false
	}
	return p.form, true
}

func (p *fakePage) LookupField(id string) (Field, bool) {
	if p.omit[id] {
		return nil, false
	}
	switch id {
	case SourcesID:
		return p.sources, true
	case DestinationID:
		return p.destination, true
	}
	return nil, false
}

func (p *fakePage) LookupSelector(id string) (Selector, bool) {
	if id != UploadID || p.omit[id] {
		return nil, false
	}
	return p.upload, true
}

func (p *fakePage) LookupMessage(id string) (MessageView, bool) {
	if id != MessageID || p.omit[id] {
		return nil, false
	}
	return p.message, true
}

func (p *fakePage) LookupButton(id string) (Button, bool) {
	if id != SubmitID || p.omit[id] {
		return nil, false
	}
	return p.button, true
}

func (p *fakePage) handles() Handles {
	return Handles{
		Sources:     p.sources,
		Destination: p.destination,
		Upload:      p.upload,
		Message:     p.message,
		Submit:      p.button,
	}
}

// fakeSubmitter records every request and answers with resp/err, or runs fn
// when set.
type fakeSubmitter struct {
	mu       sync.Mutex
	requests []*models.RunBackupRequest
	resp     *models.RunBackupResponse
	err      error
	fn       func(ctx context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error)
}

func (s *fakeSubmitter) RunBackup(ctx context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return s.resp, s.err
}

func (s *fakeSubmitter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type fakeRecorder struct {
	outcomes []string
}

func (r *fakeRecorder) RecordSubmission(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}
