package progress

import (
	"testing"

	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

func TestParser_DownloadLines(t *testing.T) {
	p := New()

	ev, ok := p.ParseLine("[download]  45.2% of 5.00MiB at 1.00MiB/s ETA 00:03")
	if !ok || ev.Kind != KindProgress {
		t.Fatalf("expected progress event, got %+v ok=%v", ev, ok)
	}
	if ev.Percent != 45.2 {
		t.Errorf("percent = %v, want 45.2", ev.Percent)
	}
	if ev.Rate != "1.00MiB/s" {
		t.Errorf("rate = %q, want 1.00MiB/s", ev.Rate)
	}
	if ev.ETASeconds != 3 {
		t.Errorf("eta = %d, want 3", ev.ETASeconds)
	}
}

func TestParser_PercentMonotonic(t *testing.T) {
	p := New()

	lines := []string{
		"[download]  10.0% of 5.00MiB at 500.00KiB/s ETA 00:50",
		"[download]  62.5% of 5.00MiB at 1.00MiB/s ETA 00:10",
		// yt-dlp restarts percent for the audio stream of a merged
		// download; the job-level percent must not regress.
		"[download]   3.0% of 1.00MiB at 1.00MiB/s ETA 00:01",
		"[download]  80.0% of 5.00MiB at 1.00MiB/s ETA 00:02",
	}

	var last float64
	for _, line := range lines {
		ev, ok := p.ParseLine(line)
		if !ok {
			t.Fatalf("line not parsed: %s", line)
		}
		if ev.Percent < last {
			t.Errorf("percent regressed: %v after %v (line %q)", ev.Percent, last, line)
		}
		last = ev.Percent
	}

	if p.Percent() != 80.0 {
		t.Errorf("final percent = %v, want 80.0", p.Percent())
	}
}

func TestParser_PartialProgressLine(t *testing.T) {
	p := New()

	// No rate or ETA yet; still a valid progress line.
	ev, ok := p.ParseLine("[download]   0.0% of 5.00MiB")
	if !ok || ev.Kind != KindProgress {
		t.Fatalf("expected progress event, got %+v", ev)
	}
	if ev.Percent != 0 || ev.Rate != "" || ev.ETASeconds != 0 {
		t.Errorf("unexpected fields: %+v", ev)
	}
}

func TestParser_UnrecognizedLinesAreWarnings(t *testing.T) {
	p := New()

	for _, line := range []string{
		"[youtube] abc123: Downloading webpage",
		"[Merger] Merging formats into \"video.mp4\"",
		"WARNING: unable to extract channel id",
		"complete gibberish %%%",
	} {
		ev, ok := p.ParseLine(line)
		if !ok {
			t.Fatalf("line dropped entirely: %s", line)
		}
		if ev.Kind != KindWarning {
			t.Errorf("line %q: kind = %v, want warning", line, ev.Kind)
		}
	}

	if _, ok := p.ParseLine("   "); ok {
		t.Error("blank lines should emit nothing")
	}
}

func TestParser_FinishSuccess(t *testing.T) {
	p := New()
	p.ParseLine("[download]  99.0% of 5.00MiB at 1.00MiB/s ETA 00:01")

	ev := p.Finish(ytdlp.ExitStatus{Code: 0})
	if ev.Kind != KindTerminal || !ev.Success {
		t.Fatalf("expected successful terminal, got %+v", ev)
	}
	if ev.Percent != 100 {
		t.Errorf("success terminal should carry percent 100, got %v", ev.Percent)
	}
}

func TestParser_FinishFailureUsesCapturedErrors(t *testing.T) {
	p := New()
	p.ParseLine("[download]  40.0% of 5.00MiB at 1.00MiB/s ETA 00:10")

	ev, ok := p.ParseLine("ERROR: unable to download video data: HTTP Error 403")
	if !ok || ev.Kind != KindWarning {
		t.Fatalf("ERROR line should surface as warning, got %+v", ev)
	}

	term := p.Finish(ytdlp.ExitStatus{Code: 1})
	if term.Success {
		t.Fatal("nonzero exit must not be success")
	}
	if term.Detail != "network error (exit code 1)" {
		t.Errorf("detail = %q", term.Detail)
	}
	if !term.Transient {
		t.Error("network-class failure should be transient")
	}
	if term.Percent != 40.0 {
		t.Errorf("failure terminal should freeze last percent, got %v", term.Percent)
	}
}

func TestParser_FinishSignalled(t *testing.T) {
	p := New()
	term := p.Finish(ytdlp.ExitStatus{Code: -1, Signalled: true})
	if term.Success {
		t.Fatal("signalled exit must not be success")
	}
	if term.Detail != "terminated by signal" {
		t.Errorf("detail = %q", term.Detail)
	}
}

func TestParseETA(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"00:03", 3},
		{"01:30", 90},
		{"1:02:03", 3723},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseETA(tt.in); got != tt.want {
			t.Errorf("parseETA(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
