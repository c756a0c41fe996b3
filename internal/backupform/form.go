// Package backupform implements the create-backup form controller.
//
// The controller reads the form's fields, turns them into a
// models.RunBackupRequest, submits it once and reports the outcome back on the
// form. It never touches a concrete UI: every page it drives (terminal,
// server-rendered HTML, test doubles) hands it a set of named handles through
// the Host interface.
package backupform

import "context"

// Element ids the host page must provide.
const (
	FormID        = "create-backup-form"
	SourcesID     = "sources"
	DestinationID = "destination"
	UploadID      = "uploadToDrive"
	MessageID     = "form-message"
	SubmitID      = "create-backup-btn"
)

// Values accepted by the upload selector. Any other value means the operator
// made no choice.
const (
	UploadUnset = ""
	UploadYes   = "true"
	UploadNo    = "false"
)

// Severity tags the feedback message shown on the form.
type Severity string

const (
	SeverityNeutral Severity = ""
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// SubmitHandler handles one submission of the form.
type SubmitHandler func(ctx context.Context) error

// Form is the form element itself.
type Form interface {
	OnSubmit(h SubmitHandler)
}

// Field is a free-text input.
type Field interface {
	Value() string
	SetInvalid(invalid bool)
	Focus()
}

// Selector is the tri-state upload selector.
type Selector interface {
	Value() string
}

// MessageView displays a single feedback message; each call replaces the previous one.
type MessageView interface {
	SetMessage(text string, severity Severity)
}

// Button is the submit control.
type Button interface {
	Label() string
	SetLabel(label string)
	SetDisabled(disabled bool)
	SetBusy(busy bool)
}

// Host resolves UI handles by element id. A lookup reports false when the
// page has no element with that id.
type Host interface {
	LookupForm(id string) (Form, bool)
	LookupField(id string) (Field, bool)
	LookupSelector(id string) (Selector, bool)
	LookupMessage(id string) (MessageView, bool)
	LookupButton(id string) (Button, bool)
}

// Handles is the resolved set of UI handles a Controller drives.
// Submit may be nil; every other handle is required.
type Handles struct {
	Sources     Field
	Destination Field
	Upload      Selector
	Message     MessageView
	Submit      Button
}
