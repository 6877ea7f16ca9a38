package ytdlp

import "testing"

func TestParseSearchOutput(t *testing.T) {
	dump := `{"id":"abc123","title":"First video","url":"https://www.youtube.com/watch?v=abc123","duration":213.0,"uploader":"Channel One","thumbnails":[{"url":"https://i.ytimg.com/vi/abc123/default.jpg"},{"url":"https://i.ytimg.com/vi/abc123/hqdefault.jpg"}]}
{"id":"def456","title":"Second video","webpage_url":"https://www.youtube.com/watch?v=def456","duration":90,"channel":"Channel Two"}
not json at all
{"id":"ghi789","title":"Third video","duration":30}
`

	results, err := parseSearchOutput([]byte(dump))
	if err != nil {
		t.Fatalf("parseSearchOutput: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 (bad line skipped)", len(results))
	}

	first := results[0]
	if first.ID != "abc123" || first.Title != "First video" {
		t.Errorf("first result = %+v", first)
	}
	if first.Thumbnail != "https://i.ytimg.com/vi/abc123/hqdefault.jpg" {
		t.Errorf("thumbnail = %q, want the last listed", first.Thumbnail)
	}
	if first.Duration != 213 {
		t.Errorf("duration = %v", first.Duration)
	}

	// Flat entries without a url field fall back to webpage_url, then to a
	// watch link derived from the id.
	second := results[1]
	if second.URL != "https://www.youtube.com/watch?v=def456" {
		t.Errorf("second url = %q", second.URL)
	}
	if second.Uploader != "Channel Two" {
		t.Errorf("second uploader = %q, want the channel fallback", second.Uploader)
	}

	third := results[2]
	if third.URL != "https://www.youtube.com/watch?v=ghi789" {
		t.Errorf("third url = %q", third.URL)
	}
	if third.Thumbnail != "https://i.ytimg.com/vi/ghi789/mqdefault.jpg" {
		t.Errorf("third thumbnail = %q", third.Thumbnail)
	}
}

func TestParseSearchOutput_Empty(t *testing.T) {
	results, err := parseSearchOutput(nil)
	if err != nil {
		t.Fatalf("parseSearchOutput: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %v, want empty non-nil slice", results)
	}
}
