package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

const (
	// DefaultSearchLimit matches the number of entries a plain search asks
	// the tool for.
	DefaultSearchLimit = 10
	MaxSearchLimit     = 25

	searchTimeout = 30 * time.Second
)

// SearchResult is one entry from a flat-playlist search dump.
type SearchResult struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Uploader  string  `json:"uploader"`
}

type searchEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Duration   float64 `json:"duration"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
	Uploader string `json:"uploader"`
	Channel  string `json:"channel"`
}

// Search asks the tool for up to limit videos matching the query, using the
// flat-playlist dump so no per-video extraction happens. The tool emits one
// JSON object per line.
func Search(ctx context.Context, binPath, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binPath,
		fmt.Sprintf("ytsearch%d:%s", limit, query),
		"--dump-json",
		"--flat-playlist",
		"--no-warnings",
		"--socket-timeout", "20",
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("search timed out")
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("search failed: %s", firstLine(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return parseSearchOutput(output)
}

// parseSearchOutput decodes the line-delimited JSON dump. Lines that do not
// decode are skipped rather than failing the whole search.
func parseSearchOutput(output []byte) ([]SearchResult, error) {
	results := []SearchResult{}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry searchEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}

		r := SearchResult{
			ID:       entry.ID,
			Title:    entry.Title,
			URL:      entry.URL,
			Duration: entry.Duration,
			Uploader: entry.Uploader,
		}
		if r.URL == "" {
			r.URL = entry.WebpageURL
		}
		if r.URL == "" && entry.ID != "" {
			r.URL = "https://www.youtube.com/watch?v=" + entry.ID
		}
		if r.Uploader == "" {
			r.Uploader = entry.Channel
		}
		if len(entry.Thumbnails) > 0 {
			r.Thumbnail = entry.Thumbnails[len(entry.Thumbnails)-1].URL
		}
		if r.Thumbnail == "" {
			r.Thumbnail = ThumbnailURL(entry.ID)
		}

		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read search output: %w", err)
	}

	return results, nil
}
