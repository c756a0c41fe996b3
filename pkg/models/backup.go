package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// RunBackupPath is the backend endpoint that starts a backup from ad-hoc sources.
const RunBackupPath = "/api/backups/run/"

// RunBackupRequest is the request body for starting a backup from a list of sources.
type RunBackupRequest struct {
	Sources     []string `json:"sources"`
	Destination string   `json:"destination,omitempty"`
	// UploadToDrive is nil when the operator made no explicit choice, letting
	// the server apply its own default.
	UploadToDrive *bool `json:"upload_to_drive,omitempty"`
}

// RunBackupResponse is the server response to a run request.
type RunBackupResponse struct {
	OK     Truthy          `json:"ok"`
	Backup json.RawMessage `json:"backup,omitempty"`
}

// BackupRecord is one entry of the server's backup history.
type BackupRecord struct {
	Name    string `json:"name"`
	Date    string `json:"date"`
	Path    string `json:"path"`
	Size    *int64 `json:"size,omitempty"`
	Status  string `json:"status"`
	Sources string `json:"sources"`
}

// BackupHistoryResponse is the server response for the history endpoint.
type BackupHistoryResponse struct {
	Backups []BackupRecord `json:"backups"`
}

// Truthy decodes any JSON value and reports whether it is truthy:
// false, 0, "", null and a missing field are falsy, everything else is truthy.
type Truthy bool

// UnmarshalJSON implements json.Unmarshaler.
func (t *Truthy) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch raw {
	case "", "null", "false", `""`:
		*t = false
		return nil
	case "true", "[]", "{}":
		*t = true
		return nil
	}

	if raw[0] == '"' || raw[0] == '[' || raw[0] == '{' {
		*t = true
		return nil
	}

	// Out-of-range numbers saturate: 1e400 is truthy, 1e-400 is zero.
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return err
	}
	*t = n != 0
	return nil
}
