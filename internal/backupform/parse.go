package backupform

import (
	"regexp"
	"strings"

	"github.com/MacJediWizard/backupctl/pkg/models"
)

var sourceSeparators = regexp.MustCompile(`[;\n]+`)

// ParseSources splits raw on semicolons and newlines, trims each piece and
// drops the empty ones. Order and duplicates are preserved.
func ParseSources(raw string) []string {
	var sources []string
	for _, piece := range sourceSeparators.Split(raw, -1) {
		if s := strings.TrimSpace(piece); s != "" {
			sources = append(sources, s)
		}
	}
	return sources
}

// ParseUploadPreference maps the selector value to an explicit choice.
// Only "true" and "false" count; everything else is unset.
func ParseUploadPreference(value string) *bool {
	var v bool
	switch value {
	case UploadYes:
		v = true
	case UploadNo:
		v = false
	default:
		return nil
	}
	return &v
}

// BuildRequest assembles the run request. The destination is only set when
// it is non-blank and the upload flag only when the operator chose one.
func BuildRequest(sources []string, destination, upload string) *models.RunBackupRequest {
	return &models.RunBackupRequest{
		Sources:       sources,
		Destination:   strings.TrimSpace(destination),
		UploadToDrive: ParseUploadPreference(upload),
	}
}
