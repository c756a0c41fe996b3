package models

// StatusPath is the backend endpoint reporting overall system status.
const StatusPath = "/api/status/"

// HistoryPath is the backend endpoint listing recent backups.
const HistoryPath = "/api/backups/history/"

// SystemStatus is the server response for the status endpoint.
type SystemStatus struct {
	OK         Truthy        `json:"ok"`
	LastBackup *BackupRecord `json:"last_backup,omitempty"`
}
