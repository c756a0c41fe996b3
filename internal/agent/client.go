// Package agent provides the HTTP client backupctl uses to talk to the backup server.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MacJediWizard/backupctl/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxErrorBody caps how much of a failed response body is kept for diagnostics.
const maxErrorBody = 4 << 10

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// ErrNotJSONObject is returned when a successful response body is not a JSON object.
var ErrNotJSONObject = errors.New("response body is not a JSON object")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// Client is an HTTP client for communicating with the backup server.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new API client. A nil httpClient falls back to http.DefaultClient.
func NewClient(serverURL, apiKey string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "api_client").Logger(),
	}
}

// RunBackup asks the server to start a backup of the given sources.
func (c *Client) RunBackup(ctx context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error) {
	if req == nil || len(req.Sources) == 0 {
		return nil, errors.New("run backup: at least one source is required")
	}

	var resp models.RunBackupResponse
	if err := c.do(ctx, http.MethodPost, models.RunBackupPath, req, &resp); err != nil {
		return nil, fmt.Errorf("run backup: %w", err)
	}
	return &resp, nil
}

// SystemStatus retrieves the server's status and the most recent backup.
func (c *Client) SystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	var status models.SystemStatus
	if err := c.do(ctx, http.MethodGet, models.StatusPath, nil, &status); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return &status, nil
}

// History retrieves up to limit recent backups. A non-positive limit uses the server default.
func (c *Client) History(ctx context.Context, limit int) ([]models.BackupRecord, error) {
	path := models.HistoryPath
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	var history models.BackupHistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return history.Backups, nil
}

// RunProfile asks the server to run a stored profile. A nil profileID runs
// the default profile. The response has the same shape as RunBackup's.
func (c *Client) RunProfile(ctx context.Context, profileID *int64) (*models.RunBackupResponse, error) {
	var resp models.RunBackupResponse
	req := &models.RunProfileRequest{ProfileID: profileID}
	if err := c.do(ctx, http.MethodPost, models.RunProfilePath, req, &resp); err != nil {
		return nil, fmt.Errorf("run profile: %w", err)
	}
	return &resp, nil
}

// Profiles lists up to limit stored backup profiles. A non-positive limit uses the server default.
func (c *Client) Profiles(ctx context.Context, limit int) ([]models.BackupProfile, error) {
	path := models.ProfilesPath
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	var list models.ProfileListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return list.Profiles, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log := c.logger.With().Str("method", method).Str("path", path).Str("request_id", requestID).Logger()
	log.Debug().Msg("sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Debug().Int("status", resp.StatusCode).Msg("request failed")
		return &StatusError{StatusCode: resp.StatusCode, Body: errorMessage(data)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	log.Debug().Int("status", resp.StatusCode).Int("bytes", len(data)).Msg("request completed")

	if result == nil {
		return nil
	}
	// Every endpoint answers with an object; null or a bare value would
	// otherwise decode into a zero result.
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("decode response: %w", ErrNotJSONObject)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the "error" field of a JSON error body, falling back to the trimmed raw text.
func errorMessage(body []byte) string {
	var apiErr models.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return strings.TrimSpace(string(body))
}
