// Package console hosts the create-backup form in a terminal.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/MacJediWizard/backupctl/internal/backupform"
)

// ErrNotAttached is returned by Submit when no controller is bound to the page.
var ErrNotAttached = errors.New("no submit handler attached")

// DefaultSubmitLabel is the submit button's idle label.
const DefaultSubmitLabel = "+ Create backup"

// Page is a terminal rendition of the create-backup form. Feedback messages
// are written to out, the in-progress notice to status.
type Page struct {
	out    io.Writer
	status io.Writer

	mu          sync.Mutex
	handler     backupform.SubmitHandler
	sources     *Field
	destination *Field
	upload      *Selector
	button      *Button
	message     string
	severity    backupform.Severity
	focused     string
}

// NewPage creates a page writing feedback to out and progress to status.
func NewPage(out, status io.Writer) *Page {
	p := &Page{out: out, status: status}
	p.sources = &Field{page: p, id: backupform.SourcesID}
	p.destination = &Field{page: p, id: backupform.DestinationID}
	p.upload = &Selector{}
	p.button = &Button{page: p, label: DefaultSubmitLabel}
	return p
}

// SetValues fills the form fields.
func (p *Page) SetValues(sources, destination, upload string) {
	p.sources.Set(sources)
	p.destination.Set(destination)
	p.upload.Set(upload)
}

// Sources returns the sources field.
func (p *Page) Sources() *Field { return p.sources }

// Button returns the submit button.
func (p *Page) Button() *Button { return p.button }

// Message returns the current feedback message and its severity.
func (p *Page) Message() (string, backupform.Severity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message, p.severity
}

// Focused returns the id of the field that last requested focus.
func (p *Page) Focused() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

// Submit fires the form's submit event.
func (p *Page) Submit(ctx context.Context) error {
	p.mu.Lock()
	h := p.handler
	p.focused = ""
	p.mu.Unlock()

	if h == nil {
		return ErrNotAttached
	}
	return h(ctx)
}

// OnSubmit implements backupform.Form.
func (p *Page) OnSubmit(h backupform.SubmitHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// SetMessage implements backupform.MessageView.
func (p *Page) SetMessage(text string, severity backupform.Severity) {
	p.mu.Lock()
	p.message = text
	p.severity = severity
	p.mu.Unlock()

	if text == "" {
		return
	}
	prefix := ""
	switch severity {
	case backupform.SeverityError:
		prefix = "error: "
	case backupform.SeveritySuccess:
		prefix = "ok: "
	}
	fmt.Fprintf(p.out, "%s%s\n", prefix, text)
}

// LookupForm implements backupform.Host.
func (p *Page) LookupForm(id string) (backupform.Form, bool) {
	if id != backupform.FormID {
		return nil, false
	}
	return p, true
}

// LookupField implements backupform.Host.
func (p *Page) LookupField(id string) (backupform.Field, bool) {
	switch id {
	case backupform.SourcesID:
		return p.sources, true
	case backupform.DestinationID:
		return p.destination, true
	}
	return nil, false
}

// LookupSelector implements backupform.Host.
func (p *Page) LookupSelector(id string) (backupform.Selector, bool) {
	if id != backupform.UploadID {
		return nil, false
	}
	return p.upload, true
}

// LookupMessage implements backupform.Host.
func (p *Page) LookupMessage(id string) (backupform.MessageView, bool) {
	if id != backupform.MessageID {
		return nil, false
	}
	return p, true
}

// LookupButton implements backupform.Host.
func (p *Page) LookupButton(id string) (backupform.Button, bool) {
	if id != backupform.SubmitID {
		return nil, false
	}
	return p.button, true
}

func (p *Page) focus(id string) {
	p.mu.Lock()
	p.focused = id
	p.mu.Unlock()
}

// Field is a text input on the page.
type Field struct {
	page *Page
	id   string

	mu      sync.Mutex
	value   string
	invalid bool
}

// Set replaces the field's value.
func (f *Field) Set(v string) {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
}

// Value implements backupform.Field.
func (f *Field) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// SetInvalid implements backupform.Field.
func (f *Field) SetInvalid(invalid bool) {
	f.mu.Lock()
	f.invalid = invalid
	f.mu.Unlock()
}

// Invalid reports whether the field is marked invalid.
func (f *Field) Invalid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalid
}

// Focus implements backupform.Field.
func (f *Field) Focus() {
	f.page.focus(f.id)
}

// Selector is the upload choice.
type Selector struct {
	mu    sync.Mutex
	value string
}

// Set replaces the selected value.
func (s *Selector) Set(v string) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

// Value implements backupform.Selector.
func (s *Selector) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Button is the submit control. While busy its label is printed once on
// the page's status writer.
type Button struct {
	page *Page

	mu       sync.Mutex
	label    string
	disabled bool
	busy     bool
}

// Label implements backupform.Button.
func (b *Button) Label() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.label
}

// SetLabel implements backupform.Button.
func (b *Button) SetLabel(label string) {
	b.mu.Lock()
	b.label = label
	busy := b.busy
	b.mu.Unlock()

	if busy && b.page.status != nil {
		fmt.Fprintln(b.page.status, label)
	}
}

// SetDisabled implements backupform.Button.
func (b *Button) SetDisabled(disabled bool) {
	b.mu.Lock()
	b.disabled = disabled
	b.mu.Unlock()
}

// SetBusy implements backupform.Button.
func (b *Button) SetBusy(busy bool) {
	b.mu.Lock()
	b.busy = busy
	b.mu.Unlock()
}

// Disabled reports whether the button is disabled.
func (b *Button) Disabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disabled
}

// Busy reports whether the button shows its loading state.
func (b *Button) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy
}
