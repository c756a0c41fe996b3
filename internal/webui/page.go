package webui

import (
	"context"
	"errors"
	"sync"

	"github.com/MacJediWizard/backupctl/internal/backupform"
)

// SubmitLabel is the idle label of the submit button.
const SubmitLabel = "+ Create backup"

// formInput is the posted create-backup form.
type formInput struct {
	Sources     string `form:"sources"`
	Destination string `form:"destination"`
	Upload      string `form:"uploadToDrive"`
}

// pageView is the data rendered into the create-backup template.
type pageView struct {
	Sources        string
	Destination    string
	Upload         string
	SourcesInvalid bool
	Focus          string
	Message        string
	MessageClass   string
	ButtonLabel    string
	Busy           bool
}

// formPage is a request-scoped rendition of the create-backup page. The
// controller drives it like a live document; its final state is rendered
// back to the browser.
type formPage struct {
	mu      sync.Mutex
	input   formInput
	handler backupform.SubmitHandler
	view    pageView
}

func newFormPage(input formInput) *formPage {
	return &formPage{
		input: input,
		view: pageView{
			Sources:     input.Sources,
			Destination: input.Destination,
			Upload:      input.Upload,
			ButtonLabel: SubmitLabel,
		},
	}
}

func (p *formPage) submit(ctx context.Context) error {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		return errors.New("form not attached")
	}
	return h(ctx)
}

func (p *formPage) snapshot() pageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *formPage) OnSubmit(h backupform.SubmitHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *formPage) SetMessage(text string, severity backupform.Severity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Message = text
	switch severity {
	case backupform.SeverityError:
		p.view.MessageClass = "form-message-error"
	case backupform.SeveritySuccess:
		p.view.MessageClass = "form-message-success"
	default:
		p.view.MessageClass = ""
	}
}

func (p *formPage) LookupForm(id string) (backupform.Form, bool) {
	return p, id == backupform.FormID
}

func (p *formPage) LookupField(id string) (backupform.Field, bool) {
	switch id {
	case backupform.SourcesID:
		return &pageField{page: p, id: id, value: p.input.Sources}, true
	case backupform.DestinationID:
		return &pageField{page: p, id: id, value: p.input.Destination}, true
	}
	return nil, false
}

func (p *formPage) LookupSelector(id string) (backupform.Selector, bool) {
	if id != backupform.UploadID {
		return nil, false
	}
	return pageSelector(p.input.Upload), true
}

func (p *formPage) LookupMessage(id string) (backupform.MessageView, bool) {
	return p, id == backupform.MessageID
}

func (p *formPage) LookupButton(id string) (backupform.Button, bool) {
	return pageButton{page: p}, id == backupform.SubmitID
}

type pageField struct {
	page  *formPage
	id    string
	value string
}

func (f *pageField) Value() string { return f.value }

func (f *pageField) SetInvalid(invalid bool) {
	if f.id != backupform.SourcesID {
		return
	}
	f.page.mu.Lock()
	f.page.view.SourcesInvalid = invalid
	f.page.mu.Unlock()
}

func (f *pageField) Focus() {
	f.page.mu.Lock()
	f.page.view.Focus = f.id
	f.page.mu.Unlock()
}

type pageSelector string

func (s pageSelector) Value() string { return string(s) }

type pageButton struct {
	page *formPage
}

func (b pageButton) Label() string {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()
	return b.page.view.ButtonLabel
}

func (b pageButton) SetLabel(label string) {
	b.page.mu.Lock()
	b.page.view.ButtonLabel = label
	b.page.mu.Unlock()
}

// SetDisabled and SetBusy share one flag: the rendered button is either
// idle or loading.
func (b pageButton) SetDisabled(disabled bool) {
	b.SetBusy(disabled)
}

func (b pageButton) SetBusy(busy bool) {
	b.page.mu.Lock()
	b.page.view.Busy = busy
	b.page.mu.Unlock()
}
