package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// Metadata contains information about the media behind a URL, fetched
// without downloading.
type Metadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
	WebpageURL string  `json:"webpage_url"`
	Extractor  string  `json:"extractor"`
}

type dumpJSONOutput struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
	WebpageURL string `json:"webpage_url"`
	Extractor  string `json:"extractor"`
}

// ProbeMetadata asks the tool for media metadata via --dump-json. Callers
// treat failures as non-fatal; a download can proceed without a title.
func ProbeMetadata(ctx context.Context, binPath, sourceURL string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, binPath,
		"--dump-json",
		"--no-download",
		"--no-warnings",
		sourceURL,
	)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("metadata probe: %s", firstLine(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("metadata probe: %w", err)
	}

	var out dumpJSONOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	m := &Metadata{
		ID:         out.ID,
		Title:      out.Title,
		Duration:   out.Duration,
		Thumbnail:  out.Thumbnail,
		WebpageURL: out.WebpageURL,
		Extractor:  out.Extractor,
	}
	if m.Thumbnail == "" && len(out.Thumbnails) > 0 {
		m.Thumbnail = out.Thumbnails[len(out.Thumbnails)-1].URL
	}

	return m, nil
}

// ExtractVideoID pulls the video id out of the common YouTube URL shapes.
// Returns empty for anything else.
func ExtractVideoID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Host)

	switch host {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		if parsed.Path == "/watch" {
			return parsed.Query().Get("v")
		}
	case "youtu.be":
		return strings.TrimPrefix(parsed.Path, "/")
	}

	return ""
}

// ThumbnailURL derives the standard thumbnail location for a video id.
func ThumbnailURL(videoID string) string {
	if videoID == "" {
		return ""
	}
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/mqdefault.jpg", videoID)
}
