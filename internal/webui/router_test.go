package webui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/MacJediWizard/backupctl/internal/backupform"
	"github.com/MacJediWizard/backupctl/internal/metrics"
	"github.com/MacJediWizard/backupctl/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockSubmitter struct {
	mu       sync.Mutex
	requests []*models.RunBackupRequest
	resp     *models.RunBackupResponse
	err      error
}

func (m *mockSubmitter) RunBackup(_ context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.resp, m.err
}

type mockStatus struct {
	status *models.SystemStatus
	err    error
}

func (m *mockStatus) SystemStatus(context.Context) (*models.SystemStatus, error) {
	return m.status, m.err
}

func newTestRouter(t *testing.T, cfg Config, deps Dependencies) *gin.Engine {
	t.Helper()
	r, err := NewRouter(cfg, deps, zerolog.Nop())
	require.NoError(t, err)
	return r.Engine
}

func postForm(r http.Handler, values url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "127.0.0.1:40000"
	r.ServeHTTP(w, req)
	return w
}

func TestNewRouter_RequiresSubmitter(t *testing.T) {
	_, err := NewRouter(DefaultConfig(), Dependencies{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewRouter_InvalidRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubmitRate = "sometimes"
	_, err := NewRouter(cfg, Dependencies{Submitter: &mockSubmitter{}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestFormHandler_Show(t *testing.T) {
	r := newTestRouter(t, DefaultConfig(), Dependencies{Submitter: &mockSubmitter{}})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, id := range []string{
		backupform.FormID, backupform.SourcesID, backupform.DestinationID,
		backupform.UploadID, backupform.MessageID, backupform.SubmitID,
	} {
		assert.Contains(t, body, `id="`+id+`"`)
	}
	assert.Contains(t, body, "Create backup</button>")
	assert.NotContains(t, body, "autofocus")
	assert.NotContains(t, body, `class="input-error"`)
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestFormHandler_Submit(t *testing.T) {
	tests := []struct {
		name       string
		values     url.Values
		resp       *models.RunBackupResponse
		err        error
		wantStatus int
		wantBody   []string
		denyBody   []string
		wantCalls  int
	}{
		{
			name:       "blank sources",
			values:     url.Values{"sources": {"   "}},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   []string{backupform.MessageMissingSources, `class="form-message form-message-error"`, `class="input-error"`, "autofocus"},
		},
		{
			name:       "separators only",
			values:     url.Values{"sources": {" ;; \n "}},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   []string{backupform.MessageNoEntries, `class="input-error"`},
		},
		{
			name:       "started",
			values:     url.Values{"sources": {"/etc; /home"}, "destination": {"/mnt/nas"}, "uploadToDrive": {"true"}},
			resp:       &models.RunBackupResponse{OK: true},
			wantStatus: http.StatusOK,
			wantBody:   []string{backupform.MessageStarted, `class="form-message form-message-success"`, `value="/mnt/nas"`, `value="true" selected`},
			denyBody:   []string{`class="input-error"`, "disabled", `class="btn-loading"`, backupform.DefaultBusyLabel},
			wantCalls:  1,
		},
		{
			name:       "not started",
			values:     url.Values{"sources": {"/etc"}},
			resp:       &models.RunBackupResponse{OK: false},
			wantStatus: http.StatusBadGateway,
			wantBody:   []string{backupform.MessageRejected, `class="form-message form-message-error"`},
			wantCalls:  1,
		},
		{
			name:       "server unreachable",
			values:     url.Values{"sources": {"/etc"}},
			err:        errors.New("dial tcp 10.0.0.5:8000: connection refused"),
			wantStatus: http.StatusBadGateway,
			wantBody:   []string{backupform.MessageUnexpected},
			denyBody:   []string{"connection refused", "disabled"},
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &mockSubmitter{resp: tt.resp, err: tt.err}
			r := newTestRouter(t, DefaultConfig(), Dependencies{Submitter: sub})

			w := postForm(r, tt.values)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := w.Body.String()
			for _, s := range tt.wantBody {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.denyBody {
				assert.NotContains(t, body, s)
			}
			assert.Contains(t, body, "Create backup</button>")
			assert.Len(t, sub.requests, tt.wantCalls)
		})
	}
}

func TestFormHandler_SubmitPayload(t *testing.T) {
	sub := &mockSubmitter{resp: &models.RunBackupResponse{OK: true}}
	r := newTestRouter(t, DefaultConfig(), Dependencies{Submitter: sub})

	w := postForm(r, url.Values{
		"sources":       {"a.txt; b.txt\nc.txt"},
		"destination":   {"   "},
		"uploadToDrive": {"false"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sub.requests, 1)
	req := sub.requests[0]
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, req.Sources)
	assert.Empty(t, req.Destination)
	require.NotNil(t, req.UploadToDrive)
	assert.False(t, *req.UploadToDrive)
}

func TestFormHandler_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubmitRate = "1-M"
	sub := &mockSubmitter{resp: &models.RunBackupResponse{OK: true}}
	r := newTestRouter(t, cfg, Dependencies{Submitter: sub})

	first := postForm(r, url.Values{"sources": {"/etc"}})
	second := postForm(r, url.Values{"sources": {"/etc"}})

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Len(t, sub.requests, 1)

	// the page itself is not limited
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFormHandler_BodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 128
	sub := &mockSubmitter{resp: &models.RunBackupResponse{OK: true}}
	r := newTestRouter(t, cfg, Dependencies{Submitter: sub})

	w := postForm(r, url.Values{"sources": {strings.Repeat("/very/long/path;", 50)}})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, sub.requests)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		status     StatusChecker
		wantStatus int
		wantBody   string
	}{
		{name: "no server check", status: nil, wantStatus: http.StatusOK, wantBody: `"status":"healthy"`},
		{name: "server ok", status: &mockStatus{status: &models.SystemStatus{OK: true}}, wantStatus: http.StatusOK, wantBody: `"server":{"status":"healthy"`},
		{name: "server not ok", status: &mockStatus{status: &models.SystemStatus{OK: false}}, wantStatus: http.StatusServiceUnavailable, wantBody: "backup server reports not ok"},
		{name: "server unreachable", status: &mockStatus{err: errors.New("timeout")}, wantStatus: http.StatusServiceUnavailable, wantBody: "backup server unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, DefaultConfig(), Dependencies{Submitter: &mockSubmitter{}, Status: tt.status})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/health", nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheusMetrics(reg)
	require.NoError(t, err)

	sub := &mockSubmitter{resp: &models.RunBackupResponse{OK: true}}
	r := newTestRouter(t, DefaultConfig(), Dependencies{Submitter: sub, Recorder: m, Gatherer: reg})

	postForm(r, url.Values{"sources": {"/etc"}})
	postForm(r, url.Values{"sources": {""}})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `backupctl_submissions_total{outcome="succeeded"} 1`)
	assert.Contains(t, body, `backupctl_submissions_total{outcome="invalid"} 1`)
}

func TestMetricsRoute_Disabled(t *testing.T) {
	r := newTestRouter(t, DefaultConfig(), Dependencies{Submitter: &mockSubmitter{}})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
