package ytdlp

import "strings"

// FailureDetail is the human-readable classification of a failed download
// process, derived from its captured output.
type FailureDetail struct {
	Message string
	// Transient marks network-class failures worth retrying automatically.
	Transient bool
}

// ClassifyOutput maps the tool's free-text error output to a stable failure
// detail. Unrecognized output falls through to a generic message.
func ClassifyOutput(output string) FailureDetail {
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "this video is unavailable"):
		return FailureDetail{Message: "video unavailable"}

	case strings.Contains(lower, "private video"),
		strings.Contains(lower, "is private"):
		return FailureDetail{Message: "video is private"}

	case strings.Contains(lower, "age-restricted"),
		strings.Contains(lower, "sign in to confirm your age"):
		return FailureDetail{Message: "content is age-restricted"}

	case strings.Contains(lower, "unable to download"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "network"):
		return FailureDetail{Message: "network error", Transient: true}

	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "no suitable extractor"):
		return FailureDetail{Message: "url not supported"}

	case strings.TrimSpace(output) != "":
		return FailureDetail{Message: "download failed: " + firstLine(output)}

	default:
		return FailureDetail{Message: "download failed"}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return s
}
