package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/MacJediWizard/backupctl/internal/backupform"
	"github.com/MacJediWizard/backupctl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitFunc func(ctx context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error)

func (f submitFunc) RunBackup(ctx context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error) {
	return f(ctx, req)
}

type recordingSubmitter struct {
	requests []*models.RunBackupRequest
	resp     *models.RunBackupResponse
	err      error
}

func (s *recordingSubmitter) RunBackup(_ context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error) {
	s.requests = append(s.requests, req)
	return s.resp, s.err
}

func attach(t *testing.T, page *Page, sub backupform.Submitter) {
	t.Helper()
	_, ok := backupform.Attach(page, sub)
	require.True(t, ok, "form should attach to the console page")
}

func TestPage_SubmitSuccess(t *testing.T) {
	var out, status bytes.Buffer
	page := NewPage(&out, &status)
	sub := &recordingSubmitter{resp: &models.RunBackupResponse{OK: true}}
	attach(t, page, sub)

	page.SetValues("/etc; /home", "", "false")
	require.NoError(t, page.Submit(context.Background()))

	assert.Equal(t, "ok: "+backupform.MessageStarted+"\n", out.String())
	assert.Equal(t, backupform.DefaultBusyLabel+"\n", status.String())
	require.Len(t, sub.requests, 1)
	assert.Equal(t, []string{"/etc", "/home"}, sub.requests[0].Sources)
	require.NotNil(t, sub.requests[0].UploadToDrive)
	assert.False(t, *sub.requests[0].UploadToDrive)

	assert.Equal(t, DefaultSubmitLabel, page.Button().Label())
	assert.False(t, page.Button().Disabled())
	assert.False(t, page.Button().Busy())
}

func TestPage_SubmitValidation(t *testing.T) {
	var out, status bytes.Buffer
	page := NewPage(&out, &status)
	sub := &recordingSubmitter{}
	attach(t, page, sub)

	page.SetValues(" ;; ", "", "")
	err := page.Submit(context.Background())

	assert.True(t, backupform.IsValidation(err))
	assert.Equal(t, "error: "+backupform.MessageNoEntries+"\n", out.String())
	assert.Empty(t, status.String())
	assert.Empty(t, sub.requests)
	assert.True(t, page.Sources().Invalid())
	assert.Equal(t, backupform.SourcesID, page.Focused())

	msg, sev := page.Message()
	assert.Equal(t, backupform.MessageNoEntries, msg)
	assert.Equal(t, backupform.SeverityError, sev)
}

func TestPage_SubmitTransportError(t *testing.T) {
	var out bytes.Buffer
	page := NewPage(&out, io.Discard)
	attach(t, page, submitFunc(func(context.Context, *models.RunBackupRequest) (*models.RunBackupResponse, error) {
		return nil, errors.New("dial tcp: connection refused")
	}))

	page.SetValues("/etc", "", "")
	err := page.Submit(context.Background())

	var sErr *backupform.SubmissionError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, backupform.KindTransport, sErr.Kind)
	assert.Equal(t, "error: "+backupform.MessageUnexpected+"\n", out.String())
	assert.NotContains(t, out.String(), "connection refused")
}

func TestPage_SubmitWithoutController(t *testing.T) {
	page := NewPage(io.Discard, io.Discard)
	assert.ErrorIs(t, page.Submit(context.Background()), ErrNotAttached)
}

func TestPage_Lookups(t *testing.T) {
	page := NewPage(io.Discard, io.Discard)

	_, ok := page.LookupForm("other-form")
	assert.False(t, ok)
	_, ok = page.LookupField("unknown")
	assert.False(t, ok)
	_, ok = page.LookupSelector(backupform.SourcesID)
	assert.False(t, ok)

	for _, id := range []string{backupform.SourcesID, backupform.DestinationID} {
		_, ok := page.LookupField(id)
		assert.True(t, ok, id)
	}
}

func TestPrompter_Run(t *testing.T) {
	var out bytes.Buffer
	page := NewPage(&out, io.Discard)
	sub := &recordingSubmitter{resp: &models.RunBackupResponse{OK: true}}
	attach(t, page, sub)

	in := strings.NewReader("/etc\n/var/www;/srv\n\n/mnt/nas\nyes\n")
	err := NewPrompter(page, in, &out).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, sub.requests, 1)
	req := sub.requests[0]
	assert.Equal(t, []string{"/etc", "/var/www", "/srv"}, req.Sources)
	assert.Equal(t, "/mnt/nas", req.Destination)
	require.NotNil(t, req.UploadToDrive)
	assert.True(t, *req.UploadToDrive)
	assert.Contains(t, out.String(), backupform.MessageStarted)
}

func TestPrompter_RepromptsSources(t *testing.T) {
	var out bytes.Buffer
	page := NewPage(&out, io.Discard)
	sub := &recordingSubmitter{resp: &models.RunBackupResponse{OK: true}}
	attach(t, page, sub)

	// blank sources, no destination, "no" upload, then a valid retry
	in := strings.NewReader("\n\nno\n/etc\n\n")
	err := NewPrompter(page, in, &out).Run(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "error: "+backupform.MessageMissingSources)
	require.Len(t, sub.requests, 1)
	assert.Equal(t, []string{"/etc"}, sub.requests[0].Sources)
	require.NotNil(t, sub.requests[0].UploadToDrive)
	assert.False(t, *sub.requests[0].UploadToDrive)
}

func TestPrompter_RepromptsUpload(t *testing.T) {
	var out bytes.Buffer
	page := NewPage(&out, io.Discard)
	sub := &recordingSubmitter{resp: &models.RunBackupResponse{OK: true}}
	attach(t, page, sub)

	in := strings.NewReader("/etc\n\n\nmaybe\ny\n")
	err := NewPrompter(page, in, &out).Run(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), `Unrecognised answer "maybe"`)
	require.Len(t, sub.requests, 1)
	require.NotNil(t, sub.requests[0].UploadToDrive)
	assert.True(t, *sub.requests[0].UploadToDrive)
}

func TestPrompter_UnrecognisedUploadAtEOF(t *testing.T) {
	page := NewPage(io.Discard, io.Discard)
	sub := &recordingSubmitter{resp: &models.RunBackupResponse{OK: true}}
	attach(t, page, sub)

	err := NewPrompter(page, strings.NewReader("/etc\n\n\nmaybe"), io.Discard).Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, sub.requests)
}

func TestPrompter_EOF(t *testing.T) {
	page := NewPage(io.Discard, io.Discard)
	sub := &recordingSubmitter{}
	attach(t, page, sub)

	err := NewPrompter(page, strings.NewReader(""), io.Discard).Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, sub.requests)
}

func TestPrompter_RejectedIsReturned(t *testing.T) {
	page := NewPage(io.Discard, io.Discard)
	sub := &recordingSubmitter{resp: &models.RunBackupResponse{OK: false}}
	attach(t, page, sub)

	err := NewPrompter(page, strings.NewReader("/etc\n\n\n\n"), io.Discard).Run(context.Background())

	var sErr *backupform.SubmissionError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, backupform.KindRejected, sErr.Kind)
	assert.Len(t, sub.requests, 1)
}

func TestParseUploadAnswer(t *testing.T) {
	tests := []struct {
		answer string
		want   string
		ok     bool
	}{
		{answer: "", want: backupform.UploadUnset, ok: true},
		{answer: "default", want: backupform.UploadUnset, ok: true},
		{answer: "Y", want: backupform.UploadYes, ok: true},
		{answer: " yes ", want: backupform.UploadYes, ok: true},
		{answer: "true", want: backupform.UploadYes, ok: true},
		{answer: "n", want: backupform.UploadNo, ok: true},
		{answer: "NO", want: backupform.UploadNo, ok: true},
		{answer: "ture", want: backupform.UploadUnset, ok: false},
		{answer: "1", want: backupform.UploadUnset, ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseUploadAnswer(tt.answer)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseUploadAnswer(%q) = %q, %v, want %q, %v", tt.answer, got, ok, tt.want, tt.ok)
		}
	}
}
