package library

import "strings"

var reservedReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// CleanFilename builds a filesystem-safe name from a media title. Reserved
// path characters become underscores; an empty title falls back to "video".
func CleanFilename(title, extension string) string {
	clean := strings.TrimSpace(reservedReplacer.Replace(title))
	if clean == "" {
		clean = "video"
	}
	return clean + "." + extension
}
