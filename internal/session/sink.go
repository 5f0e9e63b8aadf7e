package session

import (
	"time"

	"github.com/openscribe/scribed/internal/config"
)

// DownloadMIME is the content type for transcript downloads.
const DownloadMIME = "text/plain"

// DownloadName returns the deterministic filename for a transcript
// download: timestamp-derived per column, or the fixed literal under the
// fixed naming scheme.
func DownloadName(col Column, naming string, at time.Time) string {
	if naming == config.NamingFixed {
		return "transcription.txt"
	}
	prefix := "speech_text"
	if col == ColumnFile {
		prefix = "file_text"
	}
	return prefix + "_" + at.Format("20060102_150405") + ".txt"
}
