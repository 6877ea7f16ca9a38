package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/anilpdv/video-downloader/internal/db"
	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/logger"
	"github.com/anilpdv/video-downloader/internal/model"
	"github.com/anilpdv/video-downloader/internal/scheduler"
)

// JobStore is the read side of job persistence the handlers need.
// *db.JobRepository satisfies it.
type JobStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.DownloadJob, error)
	List(ctx context.Context, f db.Filter) ([]*model.DownloadJob, error)
}

// DownloadHandlers exposes the download job lifecycle over HTTP. Live jobs
// are answered from the scheduler's in-memory state; finished jobs fall
// back to the repository.
type DownloadHandlers struct {
	sched *scheduler.Scheduler
	repo  JobStore
	log   *logger.Logger
}

func NewDownloadHandlers(sched *scheduler.Scheduler, repo JobStore) *DownloadHandlers {
	return &DownloadHandlers{
		sched: sched,
		repo:  repo,
		log:   logger.Default().WithComponent("api"),
	}
}

// CreateDownloadRequest is the request body for submitting a download.
type CreateDownloadRequest struct {
	URL        string `json:"url"`
	FormatType string `json:"format_type,omitempty"`
	Quality    string `json:"quality,omitempty"`
}

// JobListResponse wraps a page of jobs.
type JobListResponse struct {
	Jobs  []*model.DownloadJob `json:"jobs"`
	Count int                  `json:"count"`
}

// CreateDownload handles POST /api/downloads
func (h *DownloadHandlers) CreateDownload(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	var req CreateDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}

	if req.URL == "" {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("url is required"))
		return
	}

	job, err := h.sched.Submit(r.Context(), scheduler.SubmitRequest{
		URL:        req.URL,
		FormatType: req.FormatType,
		Quality:    req.Quality,
	})
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	h.log.Info(r.Context(), "download submitted", map[string]interface{}{
		"job_id": job.ID.String(),
		"url":    job.URL,
	})
	apperrors.WriteJSON(w, requestID, http.StatusCreated, job)
}

// GetJob handles GET /api/downloads/{id}
func (h *DownloadHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid job id"))
		return
	}

	if job, ok := h.sched.Get(id); ok {
		apperrors.WriteJSON(w, requestID, http.StatusOK, job)
		return
	}

	job, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if err == db.ErrJobNotFound {
			apperrors.WriteError(w, requestID, apperrors.JobNotFound())
			return
		}
		h.log.Error(r.Context(), "job lookup failed", err, map[string]interface{}{
			"job_id": id.String(),
		})
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load job"))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, job)
}

// ListJobs handles GET /api/downloads. Persisted rows are overlaid with the
// scheduler's live snapshots so in-flight progress is visible without
// waiting for the write-behind persister.
func (h *DownloadHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	filter := db.Filter{
		Status: r.URL.Query().Get("status"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			apperrors.WriteError(w, requestID, apperrors.BadRequest("limit must be a positive integer"))
			return
		}
		filter.Limit = n
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			apperrors.WriteError(w, requestID, apperrors.BadRequest("since must be an RFC 3339 timestamp"))
			return
		}
		filter.Since = t
	}

	jobs, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.log.Error(r.Context(), "job list failed", err)
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to list jobs"))
		return
	}

	live := make(map[uuid.UUID]*model.DownloadJob)
	for _, job := range h.sched.Jobs() {
		live[job.ID] = job
	}
	for i, job := range jobs {
		if snap, ok := live[job.ID]; ok {
			jobs[i] = snap
		}
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, JobListResponse{
		Jobs:  jobs,
		Count: len(jobs),
	})
}

// CancelJob handles DELETE /api/downloads/{id}
func (h *DownloadHandlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid job id"))
		return
	}

	if err := h.sched.Cancel(r.Context(), id); err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	h.log.Info(r.Context(), "download cancelled", map[string]interface{}{
		"job_id": id.String(),
	})

	if job, ok := h.sched.Get(id); ok {
		apperrors.WriteJSON(w, requestID, http.StatusOK, job)
		return
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]string{
		"id":     id.String(),
		"status": model.StatusCancelled,
	})
}

// RetryJob handles POST /api/downloads/{id}/retry
func (h *DownloadHandlers) RetryJob(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid job id"))
		return
	}

	job, err := h.sched.Retry(r.Context(), id)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	h.log.Info(r.Context(), "download retried", map[string]interface{}{
		"job_id":       job.ID.String(),
		"retried_from": id.String(),
	})
	apperrors.WriteJSON(w, requestID, http.StatusCreated, job)
}
