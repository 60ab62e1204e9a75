package training

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewVersion returns a version id of the form vYYYYMMDD_HHMMSS_xxxxxx. The
// random suffix keeps ids unique when two runs start within the same second.
func NewVersion(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return "v" + t.UTC().Format("20060102_150405") + "_" + suffix
}
