package api

import (
	"net/http"

	"github.com/anilpdv/video-downloader/internal/events"
	"github.com/anilpdv/video-downloader/internal/health"
	"github.com/anilpdv/video-downloader/internal/logger"
	"github.com/anilpdv/video-downloader/internal/metrics"
	"github.com/anilpdv/video-downloader/internal/middleware"
	"github.com/anilpdv/video-downloader/internal/scheduler"
	"github.com/anilpdv/video-downloader/internal/validators"
)

type Router struct {
	mux       *http.ServeMux
	downloads *DownloadHandlers
	search    *SearchHandlers
	validate  *validators.Handlers
	ws        *WSHandler
	health    *health.Handler
	metrics   *metrics.Metrics
	handler   http.Handler
}

func NewRouter(sched *scheduler.Scheduler, repo JobStore, search SearchFunc, registry *validators.Registry, bridge *events.Bridge, healthHandler *health.Handler, m *metrics.Metrics, log *logger.Logger) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		downloads: NewDownloadHandlers(sched, repo),
		search:    NewSearchHandlers(search),
		validate:  validators.NewHandlers(registry),
		ws:        NewWSHandler(bridge),
		health:    healthHandler,
		metrics:   m,
	}
	r.setupRoutes()
	r.handler = middleware.Chain(r.mux,
		middleware.Recoverer(log),
		middleware.RequestID,
		middleware.Logging(log),
		middleware.Metrics(m),
		middleware.CORS([]string{"*"}),
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Health checks
	r.mux.HandleFunc("GET /health", r.health.HealthHandler)
	r.mux.HandleFunc("GET /health/live", r.health.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.health.ReadinessHandler)
	r.mux.HandleFunc("GET /metrics", r.metrics.Handler())

	// Download job lifecycle
	r.mux.HandleFunc("POST /api/downloads", r.downloads.CreateDownload)
	r.mux.HandleFunc("GET /api/downloads", r.downloads.ListJobs)
	r.mux.HandleFunc("GET /api/downloads/{id}", r.downloads.GetJob)
	r.mux.HandleFunc("DELETE /api/downloads/{id}", r.downloads.CancelJob)
	r.mux.HandleFunc("POST /api/downloads/{id}/retry", r.downloads.RetryJob)

	// Media search
	r.mux.HandleFunc("GET /api/search", r.search.Search)

	// URL validation
	r.mux.HandleFunc("POST /api/validate", r.validate.ValidateURL)
	r.mux.HandleFunc("GET /api/validate", r.validate.ValidateURLQuery)
	r.mux.HandleFunc("GET /api/sources", r.validate.GetSupportedSources)

	// Event stream
	r.mux.HandleFunc("GET /ws", r.ws.ServeWS)
}
