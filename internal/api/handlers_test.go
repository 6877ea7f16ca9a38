package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/anilpdv/video-downloader/internal/db"
	"github.com/anilpdv/video-downloader/internal/events"
	"github.com/anilpdv/video-downloader/internal/health"
	"github.com/anilpdv/video-downloader/internal/library"
	"github.com/anilpdv/video-downloader/internal/logger"
	"github.com/anilpdv/video-downloader/internal/metrics"
	"github.com/anilpdv/video-downloader/internal/model"
	"github.com/anilpdv/video-downloader/internal/scheduler"
	"github.com/anilpdv/video-downloader/internal/validators"
	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

// memStore satisfies both scheduler.Store and JobStore.
type memStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*model.DownloadJob
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[uuid.UUID]*model.DownloadJob)}
}

func (s *memStore) Upsert(ctx context.Context, job *model.DownloadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *memStore) Get(ctx context.Context, id uuid.UUID) (*model.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		return job.Clone(), nil
	}
	return nil, db.ErrJobNotFound
}

func (s *memStore) List(ctx context.Context, f db.Filter) ([]*model.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.DownloadJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		out = append(out, job.Clone())
	}
	return out, nil
}

func (s *memStore) ListIncomplete(ctx context.Context) ([]*model.DownloadJob, error) {
	return nil, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context) (string, error) {
	return "/tmp/yt-dlp", nil
}

// stubProc never produces output and only exits when terminated.
type stubProc struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func (p *stubProc) Lines() <-chan string { return p.lines }

func (p *stubProc) Wait() ytdlp.ExitStatus {
	<-p.done
	return ytdlp.ExitStatus{Code: -1, Signalled: true}
}

func (p *stubProc) Terminate() {
	p.once.Do(func() {
		close(p.lines)
		close(p.done)
	})
}

type stubRunner struct{}

func (stubRunner) Start(ctx context.Context, binPath string, spec ytdlp.Spec) (scheduler.Process, error) {
	p := &stubProc{lines: make(chan string), done: make(chan struct{})}
	go func() {
		<-ctx.Done()
		p.Terminate()
	}()
	return p, nil
}

type stubLibrary struct {
	dir string
}

func (l stubLibrary) MediaDir() string { return l.dir }

func (l stubLibrary) StagingDir(jobID uuid.UUID) (string, error) {
	return l.dir, nil
}

func (l stubLibrary) Place(ctx context.Context, jobID uuid.UUID, title string) (*library.Placement, error) {
	return &library.Placement{Filename: "out.mp4", Path: l.dir + "/out.mp4", Size: 1}, nil
}

func (l stubLibrary) Discard(jobID uuid.UUID) {}

type testServer struct {
	router *Router
	store  *memStore
	sched  *scheduler.Scheduler

	searchErr error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{}
	store := newMemStore()
	bridge := events.NewBridge()
	sched := scheduler.New(store, stubResolver{}, stubRunner{}, stubLibrary{dir: t.TempDir()}, validators.DefaultRegistry(), bridge, scheduler.Options{
		Workers: 2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not shut down")
		}
	})

	checker := health.NewChecker(&health.CheckerConfig{
		BinaryCheck: func(ctx context.Context) error { return nil },
		Version:     "test",
	})
	log := logger.New(&logger.Config{Level: logger.LevelError})

	search := func(ctx context.Context, query string, limit int) ([]ytdlp.SearchResult, error) {
		if ts.searchErr != nil {
			return nil, ts.searchErr
		}
		results := []ytdlp.SearchResult{
			{ID: "abc123", Title: "Result for " + query, URL: "https://www.youtube.com/watch?v=abc123"},
			{ID: "def456", Title: "Another result", URL: "https://www.youtube.com/watch?v=def456"},
		}
		if limit < len(results) {
			results = results[:limit]
		}
		return results, nil
	}

	ts.router = NewRouter(sched, store, search, validators.DefaultRegistry(), bridge, health.NewHandler(checker), metrics.New(), log)
	ts.store = store
	ts.sched = sched
	return ts
}

// getJob reads the live snapshot, falling back to the store once a terminal
// job has been evicted from scheduler memory.
func (ts *testServer) getJob(id uuid.UUID) *model.DownloadJob {
	if job, ok := ts.sched.Get(id); ok {
		return job
	}
	job, err := ts.store.Get(context.Background(), id)
	if err != nil {
		return nil
	}
	return job
}

func (ts *testServer) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJob(t *testing.T, w *httptest.ResponseRecorder) *model.DownloadJob {
	t.Helper()
	var job model.DownloadJob
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("failed to decode job: %v", err)
	}
	return &job
}

func TestCreateDownload(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodPost, "/api/downloads",
		`{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "format_type": "audio", "quality": "medium"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	job := decodeJob(t, w)
	if job.ID == uuid.Nil {
		t.Error("expected a job ID")
	}
	if job.Status != model.StatusQueued {
		t.Errorf("expected status queued, got %s", job.Status)
	}
	if job.FormatType != model.FormatAudio || job.Quality != model.QualityMedium {
		t.Errorf("unexpected format selection: %s/%s", job.FormatType, job.Quality)
	}
	if job.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("expected canonical URL, got %s", job.URL)
	}

	// The row is persisted before the response is written.
	if _, err := ts.store.Get(context.Background(), job.ID); err != nil {
		t.Errorf("job not persisted: %v", err)
	}
}

func TestCreateDownload_InvalidURL(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodPost, "/api/downloads", `{"url": "notaurl"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if resp.Error.Code != "INVALID_URL" {
		t.Errorf("expected INVALID_URL, got %s", resp.Error.Code)
	}
}

func TestCreateDownload_MissingURL(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodPost, "/api/downloads", `{}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetJob(t *testing.T) {
	ts := newTestServer(t)

	created := decodeJob(t, ts.request(t, http.MethodPost, "/api/downloads",
		`{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`))

	w := ts.request(t, http.MethodGet, "/api/downloads/"+created.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	job := decodeJob(t, w)
	if job.ID != created.ID {
		t.Errorf("expected job %s, got %s", created.ID, job.ID)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodGet, "/api/downloads/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetJob_BadID(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodGet, "/api/downloads/not-a-uuid", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestListJobs_OverlaysLiveState(t *testing.T) {
	ts := newTestServer(t)

	created := decodeJob(t, ts.request(t, http.MethodPost, "/api/downloads",
		`{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`))

	// Wait for the scheduler to start the job.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if job, ok := ts.sched.Get(created.ID); ok && job.Status == model.StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Make the persisted row stale; the list must still show the live state.
	stale := created.Clone()
	stale.Status = model.StatusQueued
	ts.store.Upsert(context.Background(), stale)

	w := ts.request(t, http.MethodGet, "/api/downloads", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp JobListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected 1 job, got %d", resp.Count)
	}
	if resp.Jobs[0].Status != model.StatusRunning {
		t.Errorf("expected live status running, got %s", resp.Jobs[0].Status)
	}
}

func TestListJobs_BadLimit(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodGet, "/api/downloads?limit=zero", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestCancelJob(t *testing.T) {
	ts := newTestServer(t)

	created := decodeJob(t, ts.request(t, http.MethodPost, "/api/downloads",
		`{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`))

	w := ts.request(t, http.MethodDelete, "/api/downloads/"+created.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// Cancellation may need the worker to observe termination.
	deadline := time.Now().Add(2 * time.Second)
	for {
		job := ts.getJob(created.ID)
		if job != nil && job.Status == model.StatusCancelled {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never cancelled, status %v", job)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCancelJob_NotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodDelete, "/api/downloads/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestRetryJob_NotFailedConflicts(t *testing.T) {
	ts := newTestServer(t)

	created := decodeJob(t, ts.request(t, http.MethodPost, "/api/downloads",
		`{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`))

	w := ts.request(t, http.MethodPost, "/api/downloads/"+created.ID.String()+"/retry", "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodGet, "/api/validate?url=https://www.youtube.com/watch?v=dQw4w9WgXcQ", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.request(t, http.MethodGet, "/health/live", ""); w.Code != http.StatusOK {
		t.Errorf("liveness: expected 200, got %d", w.Code)
	}
	if w := ts.request(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, http.MethodGet, "/health/live", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on response")
	}
}
