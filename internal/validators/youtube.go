package validators

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// YouTubeValidator validates YouTube URLs and extracts the video ID.
type YouTubeValidator struct {
	// videoIDPattern matches YouTube video IDs (11 characters, alphanumeric with - and _)
	videoIDPattern *regexp.Regexp
}

// NewYouTubeValidator creates a new YouTube URL validator
func NewYouTubeValidator() *YouTubeValidator {
	return &YouTubeValidator{
		videoIDPattern: regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`),
	}
}

// SourceType returns the source type for this validator
func (v *YouTubeValidator) SourceType() SourceType {
	return SourceYouTube
}

func normalizeHost(parsed *url.URL) string {
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	return host
}

// CanHandle returns true if the URL appears to be a YouTube URL
func (v *YouTubeValidator) CanHandle(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	switch normalizeHost(parsed) {
	case "youtube.com", "youtu.be", "music.youtube.com":
		return true
	}
	return false
}

// Validate validates a YouTube URL and extracts the video ID
func (v *YouTubeValidator) Validate(rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return v.invalid(rawURL, "invalid URL format")
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
		rawURL = parsed.String()
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return v.invalid(rawURL, "invalid URL scheme")
	}

	var videoID, mediaType string

	switch normalizeHost(parsed) {
	case "youtu.be":
		// Short URL format: youtu.be/VIDEO_ID
		videoID = strings.TrimPrefix(parsed.Path, "/")
		mediaType = "video"

	case "youtube.com", "music.youtube.com":
		videoID, mediaType = extractFromYouTubeCom(parsed)

	default:
		return v.invalid(rawURL, "not a YouTube URL")
	}

	if strings.HasPrefix(parsed.Path, "/playlist") {
		return v.invalid(rawURL, "playlist URLs are not supported; submit individual videos")
	}

	if videoID == "" {
		return v.invalid(rawURL, "could not extract video ID from URL")
	}

	if !v.videoIDPattern.MatchString(videoID) {
		result := v.invalid(rawURL, "invalid video ID format")
		result.MediaID = videoID
		return result
	}

	return ValidationResult{
		Valid:      true,
		SourceType: SourceYouTube,
		MediaID:    videoID,
		MediaType:  mediaType,
		URL:        rawURL,
		Canonical:  fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
	}
}

func (v *YouTubeValidator) invalid(rawURL, reason string) ValidationResult {
	return ValidationResult{
		Valid:      false,
		SourceType: SourceYouTube,
		URL:        rawURL,
		Error:      reason,
	}
}

// extractFromYouTubeCom extracts video ID from youtube.com URLs
func extractFromYouTubeCom(parsed *url.URL) (videoID, mediaType string) {
	path := parsed.Path
	query := parsed.Query()

	switch {
	case strings.HasPrefix(path, "/watch"):
		// Standard watch URL: /watch?v=VIDEO_ID
		videoID = query.Get("v")
		mediaType = "video"

	case strings.HasPrefix(path, "/shorts/"):
		videoID = strings.TrimPrefix(path, "/shorts/")
		mediaType = "short"

	case strings.HasPrefix(path, "/embed/"):
		videoID = strings.TrimPrefix(path, "/embed/")
		mediaType = "video"

	case strings.HasPrefix(path, "/v/"):
		// Old embed format
		videoID = strings.TrimPrefix(path, "/v/")
		mediaType = "video"

	case strings.HasPrefix(path, "/live/"):
		videoID = strings.TrimPrefix(path, "/live/")
		mediaType = "live"
	}

	// Strip any trailing path segments or query junk
	if idx := strings.Index(videoID, "/"); idx != -1 {
		videoID = videoID[:idx]
	}
	if idx := strings.Index(videoID, "?"); idx != -1 {
		videoID = videoID[:idx]
	}

	return videoID, mediaType
}
