package model

import (
	"time"

	"github.com/google/uuid"
)

// Job status constants representing the job lifecycle
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Format type and quality selectors understood by the download tool wrapper.
const (
	FormatAudio = "audio"
	FormatVideo = "video"

	QualityLowest  = "lowest"
	QualityMedium  = "medium"
	QualityHighest = "highest"
)

// DownloadJob is the full snapshot of one user-requested download, tracked
// from submission to a terminal outcome. The scheduler is the only writer;
// everything else receives copies.
type DownloadJob struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	FormatType  string    `json:"format_type"`
	Quality     string    `json:"quality"`
	Destination string    `json:"destination"`

	Status string `json:"status"`
	// Progress fields hold the last observed values while running and are
	// frozen at their final values once the job reaches a terminal state.
	Percent    float64 `json:"percent"`
	Rate       string  `json:"rate,omitempty"`
	ETASeconds int     `json:"eta_seconds,omitempty"`

	// Error holds the human-readable failure detail, present only when failed.
	Error string `json:"error,omitempty"`
	// ErrorCode is the machine classification of the failure.
	ErrorCode string `json:"error_code,omitempty"`

	// RetriedFrom links a resubmitted job back to the failed attempt it
	// replaces. The original record is never mutated.
	RetriedFrom *uuid.UUID `json:"retried_from,omitempty"`
	RetryCount  int        `json:"retry_count"`

	// Media metadata captured from the probe, best effort.
	Title        string `json:"title,omitempty"`
	VideoID      string `json:"video_id,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Duration     int64  `json:"duration,omitempty"`

	// Final file placement, set on completion.
	Filename string `json:"filename,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the job is in a terminal state.
func (j *DownloadJob) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusCancelled
}

// CanRetry returns true if the job can be resubmitted as a new attempt.
func (j *DownloadJob) CanRetry(maxRetries int) bool {
	return j.Status == StatusFailed && j.RetryCount < maxRetries
}

// Clone returns an independent copy of the job snapshot.
func (j *DownloadJob) Clone() *DownloadJob {
	c := *j
	if j.RetriedFrom != nil {
		id := *j.RetriedFrom
		c.RetriedFrom = &id
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobEvent is what the event bridge fans out to observers: the event kind
// plus the job snapshot after the change was applied.
type JobEvent struct {
	Type string       `json:"type"`
	Job  *DownloadJob `json:"job"`
}

// Event type constants.
const (
	EventProgress = "progress"
	EventState    = "state"
)

// Terminal reports whether the event carries a terminal state change. The
// bridge never drops these, unlike intermediate progress events.
func (e *JobEvent) Terminal() bool {
	return e.Type == EventState && e.Job != nil && e.Job.IsTerminal()
}
