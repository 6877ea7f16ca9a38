package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/anilpdv/video-downloader/internal/events"
	"github.com/anilpdv/video-downloader/internal/model"
)

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("GET", "/api/downloads", 50*time.Millisecond)
	m.RecordRequest("GET", "/api/downloads", 150*time.Millisecond)
	m.RecordRequest("POST", "/api/downloads", 10*time.Millisecond)

	out := m.render()

	if !strings.Contains(out, `http_requests_total{method="GET",path="/api/downloads"} 2`) {
		t.Errorf("missing GET counter in output:\n%s", out)
	}
	if !strings.Contains(out, `http_requests_total{method="POST",path="/api/downloads"} 1`) {
		t.Errorf("missing POST counter in output:\n%s", out)
	}
	if !strings.Contains(out, "http_request_duration_seconds_count") {
		t.Errorf("missing duration histogram in output:\n%s", out)
	}
}

func TestWatchCountsLifecycle(t *testing.T) {
	m := New()
	bridge := events.NewBridge()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Watch(ctx, bridge)
	}()

	publish := func(status string) {
		bridge.Publish(&model.JobEvent{
			Type: model.EventState,
			Job:  &model.DownloadJob{ID: uuid.New(), Status: status},
		})
	}

	publish(model.StatusRunning)
	publish(model.StatusCompleted)
	publish(model.StatusRunning)
	publish(model.StatusFailed)
	publish(model.StatusCancelled)
	// Progress events are not lifecycle transitions.
	bridge.Publish(&model.JobEvent{
		Type: model.EventProgress,
		Job:  &model.DownloadJob{ID: uuid.New(), Status: model.StatusRunning},
	})

	deadline := time.Now().Add(2 * time.Second)
	for m.JobCount("downloads_cancelled_total") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never observed events")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := m.JobCount("downloads_started_total"); got != 2 {
		t.Errorf("expected 2 started, got %d", got)
	}
	if got := m.JobCount("downloads_completed_total"); got != 1 {
		t.Errorf("expected 1 completed, got %d", got)
	}
	if got := m.JobCount("downloads_failed_total"); got != 1 {
		t.Errorf("expected 1 failed, got %d", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetSubscriberGauge(func() int { return 3 })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "event_subscribers 3") {
		t.Errorf("missing subscriber gauge:\n%s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "process_uptime_seconds") {
		t.Errorf("missing uptime gauge:\n%s", w.Body.String())
	}
}
