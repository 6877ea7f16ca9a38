package scheduler

import (
	"context"

	"github.com/google/uuid"

	"github.com/anilpdv/video-downloader/internal/library"
	"github.com/anilpdv/video-downloader/internal/model"
	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

// Store persists job snapshots.
type Store interface {
	Upsert(ctx context.Context, job *model.DownloadJob) error
	Get(ctx context.Context, id uuid.UUID) (*model.DownloadJob, error)
	ListIncomplete(ctx context.Context) ([]*model.DownloadJob, error)
}

// BinaryResolver yields a runnable downloader binary path.
type BinaryResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Process is a running download subprocess.
type Process interface {
	Lines() <-chan string
	Wait() ytdlp.ExitStatus
	Terminate()
}

// Runner starts download subprocesses.
type Runner interface {
	Start(ctx context.Context, binPath string, spec ytdlp.Spec) (Process, error)
}

// Library stages downloads and moves finished files into the media library.
type Library interface {
	MediaDir() string
	StagingDir(jobID uuid.UUID) (string, error)
	Place(ctx context.Context, jobID uuid.UUID, title string) (*library.Placement, error)
	Discard(jobID uuid.UUID)
}

// MetadataFunc probes title and duration before a download begins. It is
// best effort; a failure never fails the job.
type MetadataFunc func(ctx context.Context, binPath, url string) (*ytdlp.Metadata, error)

type invokerRunner struct {
	inv *ytdlp.Invoker
}

// NewInvokerRunner adapts the subprocess invoker to the Runner interface.
func NewInvokerRunner(inv *ytdlp.Invoker) Runner {
	return invokerRunner{inv: inv}
}

func (r invokerRunner) Start(ctx context.Context, binPath string, spec ytdlp.Spec) (Process, error) {
	h, err := r.inv.Start(ctx, binPath, spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}
