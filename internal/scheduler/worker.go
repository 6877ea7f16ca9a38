package scheduler

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/library"
	"github.com/anilpdv/video-downloader/internal/model"
	"github.com/anilpdv/video-downloader/internal/progress"
	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

// outcome is what a worker reports back to the loop when its job is done.
type outcome struct {
	err       *apperrors.AppError // nil on success
	transient bool
	placement *library.Placement
	percent   float64
}

// runJob drives one download to completion on its own goroutine, reporting
// every observation back to the loop as commands.
func (s *Scheduler) runJob(ctx context.Context, job *model.DownloadJob) {
	defer s.workers.Done()
	out := s.download(ctx, job)
	_ = s.do(func() { s.finishJob(job.ID, out) })
}

func (s *Scheduler) download(ctx context.Context, job *model.DownloadJob) outcome {
	binPath, err := s.resolver.Resolve(ctx)
	if err != nil {
		return outcome{err: toAppError(err), transient: apperrors.IsRetryable(err)}
	}

	if s.Probe != nil {
		if md, perr := s.Probe(ctx, binPath, job.URL); perr == nil && md != nil {
			job.Title = md.Title
			_ = s.do(func() { s.applyMetadata(job.ID, md) })
		} else if perr != nil {
			s.log.Warn(ctx, "metadata probe failed", map[string]interface{}{
				"job_id": job.ID.String(),
				"error":  perr.Error(),
			})
		}
	}

	staging, err := s.lib.StagingDir(job.ID)
	if err != nil {
		return outcome{err: toAppError(err), transient: apperrors.IsRetryable(err)}
	}

	spec := ytdlp.Spec{
		URL:            job.URL,
		FormatType:     job.FormatType,
		Quality:        job.Quality,
		OutputTemplate: filepath.Join(staging, "%(title)s.%(ext)s"),
	}

	proc, err := s.runner.Start(ctx, binPath, spec)
	if err != nil {
		s.lib.Discard(job.ID)
		return outcome{err: toAppError(err), transient: apperrors.IsRetryable(err)}
	}

	// Late registration: a cancel may already be pending.
	_ = s.do(func() {
		if st, ok := s.jobs[job.ID]; ok {
			st.proc = proc
			if st.cancelRequested {
				proc.Terminate()
			}
		}
	})

	parser := progress.New()
	for line := range proc.Lines() {
		ev, ok := parser.ParseLine(line)
		if !ok {
			continue
		}
		switch ev.Kind {
		case progress.KindProgress:
			ev := ev
			_ = s.do(func() { s.applyProgress(job.ID, ev) })
		case progress.KindWarning:
			s.log.Debug(ctx, "downloader output", map[string]interface{}{
				"job_id": job.ID.String(),
				"line":   ev.Text,
			})
		}
	}

	// The output stream closing and the exit status are separate signals;
	// Wait joins them before the verdict.
	exit := proc.Wait()
	term := parser.Finish(exit)

	if term.Success {
		placement, perr := s.lib.Place(ctx, job.ID, job.Title)
		if perr != nil {
			return outcome{
				err:       toAppError(perr),
				transient: apperrors.IsRetryable(perr),
				percent:   parser.Percent(),
			}
		}
		return outcome{placement: placement, percent: 100}
	}

	s.lib.Discard(job.ID)
	return outcome{
		err:       apperrors.ProcessFailure(term.Detail),
		transient: term.Transient,
		percent:   parser.Percent(),
	}
}

// finishJob resolves a worker's outcome into a terminal state or an
// automatic retry. Runs on the loop goroutine.
func (s *Scheduler) finishJob(id uuid.UUID, out outcome) {
	st, ok := s.jobs[id]
	if !ok {
		return
	}
	s.running--
	st.proc = nil

	switch {
	case st.cancelRequested:
		// Cancellation intent wins over whatever the process exit said.
		st.job.Error = "cancelled by user"
		st.job.ErrorCode = apperrors.CodeCancelledByUser
		if out.placement != nil {
			st.job.Filename = out.placement.Filename
			st.job.FilePath = out.placement.Path
			st.job.FileSize = out.placement.Size
		}
		s.finalize(st, model.StatusCancelled)

	case out.err == nil:
		// Rate and ETA keep their last observed values; the final snapshot
		// is frozen, not reset.
		st.job.Percent = 100
		st.job.Error = ""
		st.job.ErrorCode = ""
		if out.placement != nil {
			st.job.Filename = out.placement.Filename
			st.job.FilePath = out.placement.Path
			st.job.FileSize = out.placement.Size
		}
		s.finalize(st, model.StatusCompleted)
		s.log.Info(context.Background(), "job completed", map[string]interface{}{
			"job_id":   id.String(),
			"filename": st.job.Filename,
		})

	default:
		st.job.Error = out.err.Message
		st.job.ErrorCode = out.err.Code
		if out.percent > st.job.Percent {
			st.job.Percent = out.percent
		}
		// The failed attempt keeps its record either way; a transient
		// failure admits a fresh linked attempt on top of it.
		retry := out.transient && st.job.RetryCount < s.opts.MaxRetries && !s.draining
		s.finalize(st, model.StatusFailed)
		s.log.Warn(context.Background(), "job failed", map[string]interface{}{
			"job_id":     id.String(),
			"error_code": st.job.ErrorCode,
			"error":      st.job.Error,
			"transient":  out.transient,
		})
		if retry {
			s.scheduleRetry(st.job.Clone())
		}
	}

	s.dispatch()
}

// scheduleRetry admits a fresh attempt for a transiently failed job after a
// backoff delay. The failed record is already terminal and stays untouched;
// the successor carries the attempt counter and a link back to it. Runs on
// the loop goroutine.
func (s *Scheduler) scheduleRetry(failed *model.DownloadJob) {
	successor := successorOf(failed)
	successor.RetryCount = failed.RetryCount + 1

	backoff := apperrors.Backoff(failed.RetryCount, s.opts.Retry)
	s.log.Info(context.Background(), "retrying job after transient failure", map[string]interface{}{
		"job_id":       successor.ID.String(),
		"retried_from": failed.ID.String(),
		"attempt":      successor.RetryCount,
		"backoff":      backoff.String(),
	})

	time.AfterFunc(backoff, func() {
		_ = s.do(func() {
			if s.draining {
				return
			}
			s.admit(successor)
		})
	})
}

// applyProgress folds a parsed progress event into the job. Stale events
// arriving after a terminal transition are dropped. Loop goroutine only.
func (s *Scheduler) applyProgress(id uuid.UUID, ev progress.Event) {
	st, ok := s.jobs[id]
	if !ok || st.job.Status != model.StatusRunning {
		return
	}
	if ev.Percent >= st.job.Percent {
		st.job.Percent = ev.Percent
	}
	st.job.Rate = ev.Rate
	st.job.ETASeconds = ev.ETASeconds
	st.job.UpdatedAt = time.Now().UTC()
	s.publishProgress(st.job)
	st.persistAsync(st.job.Clone())
}

// applyMetadata records probed media metadata. Loop goroutine only.
func (s *Scheduler) applyMetadata(id uuid.UUID, md *ytdlp.Metadata) {
	st, ok := s.jobs[id]
	if !ok || st.job.IsTerminal() {
		return
	}
	st.job.Title = md.Title
	st.job.Duration = int64(md.Duration)
	if st.job.VideoID == "" {
		st.job.VideoID = md.ID
	}
	if st.job.ThumbnailURL == "" {
		st.job.ThumbnailURL = md.Thumbnail
	}
	st.job.UpdatedAt = time.Now().UTC()
	s.publishState(st.job)
	st.persistAsync(st.job.Clone())
}

func toAppError(err error) *apperrors.AppError {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr
	}
	return apperrors.InternalError(err.Error())
}
