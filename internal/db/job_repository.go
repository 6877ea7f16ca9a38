package db

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/anilpdv/video-downloader/internal/model"
)

var ErrJobNotFound = errors.New("download job not found")

// Filter narrows a List call. Zero values mean "no constraint".
type Filter struct {
	Status string
	Since  time.Time
	Limit  int
}

type JobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, url, format_type, quality, destination, status, percent, rate,
		   eta_seconds, error, error_code, retried_from, retry_count, title,
		   video_id, thumbnail_url, duration, filename, file_path, file_size,
		   created_at, updated_at, started_at, completed_at`

// Upsert writes the full job row, inserting on first sight. Callers hand it
// snapshots, so the latest write always wins.
func (r *JobRepository) Upsert(ctx context.Context, job *model.DownloadJob) error {
	query := `
		INSERT INTO download_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			percent = EXCLUDED.percent,
			rate = EXCLUDED.rate,
			eta_seconds = EXCLUDED.eta_seconds,
			error = EXCLUDED.error,
			error_code = EXCLUDED.error_code,
			retry_count = EXCLUDED.retry_count,
			title = EXCLUDED.title,
			video_id = EXCLUDED.video_id,
			thumbnail_url = EXCLUDED.thumbnail_url,
			duration = EXCLUDED.duration,
			filename = EXCLUDED.filename,
			file_path = EXCLUDED.file_path,
			file_size = EXCLUDED.file_size,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.URL, job.FormatType, job.Quality, job.Destination,
		job.Status, job.Percent, job.Rate, job.ETASeconds, job.Error,
		job.ErrorCode, job.RetriedFrom, job.RetryCount, job.Title,
		job.VideoID, job.ThumbnailURL, job.Duration, job.Filename,
		job.FilePath, job.FileSize, job.CreatedAt, job.UpdatedAt,
		job.StartedAt, job.CompletedAt,
	)
	return err
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*model.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns jobs newest first.
func (r *JobRepository) List(ctx context.Context, f Filter) ([]*model.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs WHERE 1=1`
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND status = $1`
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListIncomplete returns jobs that were queued or running when the process
// last stopped. Used at startup to reconcile state after a crash.
func (r *JobRepository) ListIncomplete(ctx context.Context) ([]*model.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs
		WHERE status IN ($1, $2) ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, model.StatusQueued, model.StatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scannable) (*model.DownloadJob, error) {
	var (
		j           model.DownloadJob
		rate        sql.NullString
		errMsg      sql.NullString
		errCode     sql.NullString
		title       sql.NullString
		videoID     sql.NullString
		thumbnail   sql.NullString
		filename    sql.NullString
		filePath    sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&j.ID, &j.URL, &j.FormatType, &j.Quality, &j.Destination,
		&j.Status, &j.Percent, &rate, &j.ETASeconds, &errMsg,
		&errCode, &j.RetriedFrom, &j.RetryCount, &title,
		&videoID, &thumbnail, &j.Duration, &filename,
		&filePath, &j.FileSize, &j.CreatedAt, &j.UpdatedAt,
		&startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Rate = rate.String
	j.Error = errMsg.String
	j.ErrorCode = errCode.String
	j.Title = title.String
	j.VideoID = videoID.String
	j.ThumbnailURL = thumbnail.String
	j.Filename = filename.String
	j.FilePath = filePath.String
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}
