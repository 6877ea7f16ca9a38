package ytdlp

import (
	"strings"
	"testing"

	"github.com/anilpdv/video-downloader/internal/model"
)

func TestBuildArgs_Audio(t *testing.T) {
	args, err := BuildArgs(Spec{
		URL:            "https://www.youtube.com/watch?v=abc123",
		FormatType:     model.FormatAudio,
		Quality:        model.QualityHighest,
		OutputTemplate: "/tmp/out/%(id)s.%(ext)s",
	})
	if err != nil {
		t.Fatalf("BuildArgs failed: %v", err)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{"-x", "--audio-format mp3", "--audio-quality 0", "-f bestaudio", "--newline", "--no-warnings"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("URL must be the final argument, got %s", args[len(args)-1])
	}
}

func TestBuildArgs_VideoQualities(t *testing.T) {
	tests := []struct {
		quality string
		want    string
	}{
		{model.QualityLowest, formatVideoLow},
		{model.QualityMedium, formatVideoMedium},
		{model.QualityHighest, formatVideoHigh},
		{"", formatVideoHigh},
	}

	for _, tt := range tests {
		args, err := BuildArgs(Spec{
			URL:            "https://youtu.be/abc",
			FormatType:     model.FormatVideo,
			Quality:        tt.quality,
			OutputTemplate: "/tmp/video",
		})
		if err != nil {
			t.Fatalf("quality %q: %v", tt.quality, err)
		}
		if args[0] != "-f" || args[1] != tt.want {
			t.Errorf("quality %q: format = %s, want %s", tt.quality, args[1], tt.want)
		}
	}
}

func TestBuildArgs_Invalid(t *testing.T) {
	if _, err := BuildArgs(Spec{FormatType: "hologram"}); err == nil {
		t.Error("expected error for unknown format type")
	}
	if _, err := BuildArgs(Spec{FormatType: model.FormatVideo, Quality: "8k"}); err == nil {
		t.Error("expected error for unknown quality")
	}
}
