package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/events"
	"github.com/anilpdv/video-downloader/internal/logger"
	"github.com/anilpdv/video-downloader/internal/model"
	"github.com/anilpdv/video-downloader/internal/validators"
	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

const (
	DefaultWorkerCount = 3
	DefaultMaxRetries  = 3
	DefaultJobTimeout  = 30 * time.Minute
)

// Options tunes the scheduler.
type Options struct {
	Workers    int
	MaxRetries int
	JobTimeout time.Duration
	// Retry shapes the backoff curve between automatic retries of
	// transient failures.
	Retry *apperrors.RetryConfig
}

// Scheduler owns the download job lifecycle: a single loop goroutine holds
// all job state and serializes every mutation, while per-job workers drive
// the subprocesses and report back over the command channel.
type Scheduler struct {
	store    Store
	resolver BinaryResolver
	runner   Runner
	lib      Library
	registry *validators.Registry
	bridge   *events.Bridge
	opts     Options
	log      *logger.Logger

	// Probe fills in media metadata before a download starts. Optional.
	Probe MetadataFunc

	cmds    chan func()
	stopped chan struct{}
	workers sync.WaitGroup

	// Everything below is owned by the loop goroutine.
	jobs     map[uuid.UUID]*jobState
	queue    []uuid.UUID
	running  int
	draining bool
}

// jobState is the loop-side record of one job. Workers never touch it; they
// operate on clones and report changes as commands.
type jobState struct {
	job             *model.DownloadJob
	cancel          context.CancelFunc
	proc            Process
	cancelRequested bool

	// persist is the job's dedicated write-behind channel: capacity one,
	// latest snapshot wins, closed after the terminal write.
	persist     chan *model.DownloadJob
	persistDone chan struct{}
}

// New creates a scheduler. Call Reconcile before Run on a fresh start.
func New(store Store, resolver BinaryResolver, runner Runner, lib Library, registry *validators.Registry, bridge *events.Bridge, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkerCount
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.Retry == nil {
		opts.Retry = apperrors.DownloadRetryConfig()
	}

	return &Scheduler{
		store:    store,
		resolver: resolver,
		runner:   runner,
		lib:      lib,
		registry: registry,
		bridge:   bridge,
		opts:     opts,
		log:      logger.Default().WithComponent("scheduler"),
		cmds:     make(chan func(), 128),
		stopped:  make(chan struct{}),
		jobs:     make(map[uuid.UUID]*jobState),
	}
}

// Reconcile marks jobs left queued or running by a previous process as
// failed. Subprocesses do not survive a restart, so their jobs cannot either.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	incomplete, err := s.store.ListIncomplete(ctx)
	if err != nil {
		return apperrors.DatabaseError("failed to load incomplete jobs").WithCause(err)
	}

	now := time.Now().UTC()
	for _, job := range incomplete {
		job.Status = model.StatusFailed
		job.Error = "interrupted by restart"
		job.ErrorCode = apperrors.CodeInternalError
		job.UpdatedAt = now
		job.CompletedAt = &now
		if err := s.store.Upsert(ctx, job); err != nil {
			return apperrors.DatabaseError("failed to reconcile job").WithCause(err)
		}
	}

	if len(incomplete) > 0 {
		s.log.Info(ctx, "reconciled interrupted jobs", map[string]interface{}{
			"count": len(incomplete),
		})
	}
	return nil
}

// Run executes the scheduler loop until ctx is cancelled, then terminates
// running downloads and waits for their workers to report in.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stopped)

	s.log.Info(ctx, "scheduler started", map[string]interface{}{
		"workers":     s.opts.Workers,
		"max_retries": s.opts.MaxRetries,
	})

	for {
		select {
		case cmd := <-s.cmds:
			cmd()
		case <-ctx.Done():
			s.beginDrain()
			for s.running > 0 {
				cmd := <-s.cmds
				cmd()
			}
			s.workers.Wait()
			s.flushPersisters()
			s.log.Info(context.Background(), "scheduler stopped", nil)
			return ctx.Err()
		}
	}
}

// beginDrain stops dispatching and asks every running download to terminate.
// Runs on the loop goroutine.
func (s *Scheduler) beginDrain() {
	s.draining = true
	for _, st := range s.jobs {
		if st.job.Status == model.StatusRunning && st.cancel != nil {
			st.cancel()
		}
	}
}

// flushPersisters closes the write-behind channels of jobs that never
// reached a terminal state and waits for all writers to drain.
func (s *Scheduler) flushPersisters() {
	for _, st := range s.jobs {
		if st.persist != nil {
			close(st.persist)
			st.persist = nil
		}
	}
	for _, st := range s.jobs {
		if st.persistDone != nil {
			<-st.persistDone
		}
	}
}

// do posts a command to the loop. Fails only after Run has returned.
func (s *Scheduler) do(fn func()) error {
	select {
	case s.cmds <- fn:
		return nil
	case <-s.stopped:
		return apperrors.InternalError("scheduler is not running")
	}
}

// SubmitRequest describes a new download.
type SubmitRequest struct {
	URL        string
	FormatType string
	Quality    string
}

// Submit validates the URL, persists a queued job, and hands it to the
// dispatch loop. The returned snapshot is the caller's copy.
func (s *Scheduler) Submit(ctx context.Context, req SubmitRequest) (*model.DownloadJob, error) {
	formatType := req.FormatType
	if formatType == "" {
		formatType = model.FormatVideo
	}
	if formatType != model.FormatAudio && formatType != model.FormatVideo {
		return nil, apperrors.ValidationError("format_type must be audio or video")
	}

	quality := req.Quality
	if quality == "" {
		quality = model.QualityHighest
	}
	switch quality {
	case model.QualityLowest, model.QualityMedium, model.QualityHighest:
	default:
		return nil, apperrors.ValidationError("quality must be lowest, medium or highest")
	}

	result := s.registry.Validate(req.URL)
	if !result.Valid {
		return nil, apperrors.InvalidURL(req.URL).WithDetails(map[string]any{
			"reason": result.Error,
		})
	}

	url := result.URL
	if result.Canonical != "" {
		url = result.Canonical
	}

	now := time.Now().UTC()
	job := &model.DownloadJob{
		ID:          uuid.New(),
		URL:         url,
		FormatType:  formatType,
		Quality:     quality,
		Destination: s.lib.MediaDir(),
		Status:      model.StatusQueued,
		VideoID:     result.MediaID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if result.SourceType == validators.SourceYouTube && result.MediaID != "" {
		job.ThumbnailURL = ytdlp.ThumbnailURL(result.MediaID)
	}

	// The row exists before Submit returns; an immediate GET must find it.
	if err := s.store.Upsert(ctx, job); err != nil {
		return nil, apperrors.DatabaseError("failed to persist job").WithCause(err)
	}

	if err := s.do(func() { s.admit(job) }); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "job submitted", map[string]interface{}{
		"job_id": job.ID.String(),
		"url":    job.URL,
		"format": formatType,
	})
	return job.Clone(), nil
}

// admit registers a job with the loop and tries to dispatch it.
func (s *Scheduler) admit(job *model.DownloadJob) {
	st := &jobState{job: job}
	s.startPersister(st)
	st.persistAsync(job.Clone())
	s.jobs[job.ID] = st
	s.queue = append(s.queue, job.ID)
	s.publishState(job)
	s.dispatch()
}

// Cancel requests termination of a job. Queued jobs finalize immediately;
// running jobs finalize as cancelled when their process exits, whatever the
// exit status says.
func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID) error {
	reply := make(chan error, 1)
	err := s.do(func() {
		st, ok := s.jobs[id]
		if !ok {
			// Terminal jobs are evicted from memory once persisted; the
			// store tells finished apart from unknown.
			if job, err := s.store.Get(ctx, id); err == nil && job.IsTerminal() {
				reply <- apperrors.Conflict("job already finished")
			} else {
				reply <- apperrors.JobNotFound()
			}
			return
		}
		if st.job.IsTerminal() {
			reply <- apperrors.Conflict("job already finished")
			return
		}

		if st.job.Status == model.StatusQueued {
			s.removeFromQueue(id)
			st.job.Error = "cancelled by user"
			st.job.ErrorCode = apperrors.CodeCancelledByUser
			s.finalize(st, model.StatusCancelled)
			reply <- nil
			return
		}

		// Running. The terminate signal races the process's natural exit;
		// finishJob resolves the race in favour of cancellation.
		st.cancelRequested = true
		if st.cancel != nil {
			st.cancel()
		}
		if st.proc != nil {
			st.proc.Terminate()
		}
		reply <- nil
	})
	if err != nil {
		return err
	}

	select {
	case err := <-reply:
		if err == nil {
			s.log.Info(ctx, "job cancelled", map[string]interface{}{"job_id": id.String()})
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry resubmits a failed job as a fresh attempt linked to the original.
// The original record is left untouched.
func (s *Scheduler) Retry(ctx context.Context, id uuid.UUID) (*model.DownloadJob, error) {
	type result struct {
		job *model.DownloadJob
		err error
	}
	reply := make(chan result, 1)

	err := s.do(func() {
		original := s.lookup(ctx, id)
		if original == nil {
			reply <- result{err: apperrors.JobNotFound()}
			return
		}
		if original.Status != model.StatusFailed {
			reply <- result{err: apperrors.Conflict("only failed jobs can be retried")}
			return
		}

		fresh := successorOf(original)
		s.admit(fresh)
		reply <- result{job: fresh.Clone()}
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-reply:
		if res.err != nil {
			return nil, res.err
		}
		s.log.Info(ctx, "job retried", map[string]interface{}{
			"job_id":       res.job.ID.String(),
			"retried_from": id.String(),
		})
		return res.job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// successorOf builds the fresh attempt a retry admits, linked to the job it
// replaces. The caller owns the attempt counter.
func successorOf(original *model.DownloadJob) *model.DownloadJob {
	originalID := original.ID
	now := time.Now().UTC()
	return &model.DownloadJob{
		ID:           uuid.New(),
		URL:          original.URL,
		FormatType:   original.FormatType,
		Quality:      original.Quality,
		Destination:  original.Destination,
		Status:       model.StatusQueued,
		RetriedFrom:  &originalID,
		Title:        original.Title,
		VideoID:      original.VideoID,
		ThumbnailURL: original.ThumbnailURL,
		Duration:     original.Duration,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// lookup finds a job in memory, falling back to the store for jobs from
// previous runs. Runs on the loop goroutine.
func (s *Scheduler) lookup(ctx context.Context, id uuid.UUID) *model.DownloadJob {
	if st, ok := s.jobs[id]; ok {
		return st.job
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil
	}
	return job
}

// Get returns a snapshot of a live job. The second return is false when the
// scheduler has no in-memory record; callers then consult the store.
func (s *Scheduler) Get(id uuid.UUID) (*model.DownloadJob, bool) {
	reply := make(chan *model.DownloadJob, 1)
	if err := s.do(func() {
		if st, ok := s.jobs[id]; ok {
			reply <- st.job.Clone()
		} else {
			reply <- nil
		}
	}); err != nil {
		return nil, false
	}
	job := <-reply
	return job, job != nil
}

// Jobs returns snapshots of every job the scheduler currently tracks.
func (s *Scheduler) Jobs() []*model.DownloadJob {
	reply := make(chan []*model.DownloadJob, 1)
	if err := s.do(func() {
		out := make([]*model.DownloadJob, 0, len(s.jobs))
		for _, st := range s.jobs {
			out = append(out, st.job.Clone())
		}
		reply <- out
	}); err != nil {
		return nil
	}
	return <-reply
}

// dispatch starts queued jobs while worker slots are free. Runs on the loop
// goroutine.
func (s *Scheduler) dispatch() {
	for !s.draining && s.running < s.opts.Workers && len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]

		st, ok := s.jobs[id]
		if !ok || st.job.Status != model.StatusQueued {
			continue
		}

		now := time.Now().UTC()
		st.job.Status = model.StatusRunning
		st.job.StartedAt = &now
		st.job.UpdatedAt = now
		s.publishState(st.job)
		st.persistAsync(st.job.Clone())

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
		st.cancel = cancel
		s.running++
		s.workers.Add(1)
		go s.runJob(ctx, st.job.Clone())
	}
}

func (s *Scheduler) removeFromQueue(id uuid.UUID) {
	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// finalize moves a job to a terminal state: freeze fields, flush the last
// write, publish the terminal event. Runs on the loop goroutine.
func (s *Scheduler) finalize(st *jobState, status string) {
	now := time.Now().UTC()
	st.job.Status = status
	st.job.UpdatedAt = now
	st.job.CompletedAt = &now
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.persistFinal(st.job.Clone())
	s.publishState(st.job)

	// Once the terminal snapshot is in the store the in-memory record is
	// redundant; evicting it keeps the map bounded to live jobs.
	id := st.job.ID
	done := st.persistDone
	go func() {
		if done != nil {
			<-done
		}
		_ = s.do(func() { delete(s.jobs, id) })
	}()
}

func (s *Scheduler) publishState(job *model.DownloadJob) {
	s.bridge.Publish(&model.JobEvent{Type: model.EventState, Job: job.Clone()})
}

func (s *Scheduler) publishProgress(job *model.DownloadJob) {
	s.bridge.Publish(&model.JobEvent{Type: model.EventProgress, Job: job.Clone()})
}

// startPersister launches the job's write-behind goroutine.
func (s *Scheduler) startPersister(st *jobState) {
	st.persist = make(chan *model.DownloadJob, 1)
	st.persistDone = make(chan struct{})
	persist := st.persist
	done := st.persistDone
	go func() {
		defer close(done)
		for snap := range persist {
			if err := s.store.Upsert(context.Background(), snap); err != nil {
				s.log.Error(context.Background(), "failed to persist job snapshot", err, map[string]interface{}{
					"job_id": snap.ID.String(),
				})
			}
		}
	}()
}

// persistAsync hands the writer the latest snapshot without blocking,
// replacing any snapshot it has not picked up yet. Loop goroutine only.
func (st *jobState) persistAsync(snap *model.DownloadJob) {
	if st.persist == nil {
		return
	}
	select {
	case st.persist <- snap:
	default:
		select {
		case <-st.persist:
		default:
		}
		select {
		case st.persist <- snap:
		default:
		}
	}
}

// persistFinal guarantees the terminal snapshot is written, then retires the
// writer. Loop goroutine only; the loop is the sole sender, so after
// draining the buffer the send cannot block.
func (st *jobState) persistFinal(snap *model.DownloadJob) {
	if st.persist == nil {
		return
	}
	select {
	case <-st.persist:
	default:
	}
	st.persist <- snap
	close(st.persist)
	st.persist = nil
}
