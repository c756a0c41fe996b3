package models

// RunProfilePath is the backend endpoint that starts a backup from a stored profile.
const RunProfilePath = "/api/backups/run-profile/"

// ProfilesPath is the backend endpoint listing stored backup profiles.
const ProfilesPath = "/api/profiles/list/"

// RunProfileRequest is the request body for starting a profile backup.
// A nil ProfileID runs the server's default profile.
type RunProfileRequest struct {
	ProfileID *int64 `json:"profile_id,omitempty"`
}

// BackupProfile is a stored backup profile as listed by the server.
type BackupProfile struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	BackupFrequency string `json:"backup_frequency,omitempty"`
	IsDefault       Truthy `json:"is_default"`
}

// ProfileListResponse is the response body of the profiles endpoint.
type ProfileListResponse struct {
	Profiles []BackupProfile `json:"profiles"`
}
