package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
)

// ExitStatus describes how a download process ended.
type ExitStatus struct {
	Code      int
	Signalled bool
}

// Success reports a clean zero exit.
func (s ExitStatus) Success() bool {
	return !s.Signalled && s.Code == 0
}

// Invoker launches the resolved binary per job and supervises the spawned
// process.
type Invoker struct {
	// Grace is how long Terminate waits for the process to exit after the
	// termination signal before escalating to a kill.
	Grace time.Duration
}

// NewInvoker creates an invoker with the given termination grace period.
func NewInvoker(grace time.Duration) *Invoker {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Invoker{Grace: grace}
}

// Handle supervises one running download process. Lines carries the merged
// stdout/stderr output and closes when the process closes its streams; Wait
// then reports the exit status exactly once.
type Handle struct {
	cmd   *exec.Cmd
	grace time.Duration

	lines chan string
	done  chan struct{}
	exit  ExitStatus

	termOnce sync.Once
}

// Start spawns the binary at binPath with arguments derived from the spec.
// A SpawnError is returned if the process cannot be launched at all; the
// caller reports that as an immediate job failure.
func (inv *Invoker) Start(ctx context.Context, binPath string, spec Spec) (*Handle, error) {
	args, err := BuildArgs(spec)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}

	cmd := exec.Command(binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperrors.SpawnError("create stdout pipe").WithCause(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperrors.SpawnError("create stderr pipe").WithCause(err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperrors.SpawnError("launch downloader process").WithCause(err)
	}

	h := &Handle{
		cmd:   cmd,
		grace: inv.Grace,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go h.scan(stdout, &readers)
	go h.scan(stderr, &readers)

	go func() {
		// Wait must run after both pipes drain.
		readers.Wait()
		close(h.lines)

		err := cmd.Wait()
		h.exit = exitStatus(err)
		close(h.done)
	}()

	// Job timeout and scheduler shutdown propagate through the context.
	go func() {
		select {
		case <-ctx.Done():
			h.Terminate()
		case <-h.done:
		}
	}()

	return h, nil
}

// Lines returns the process output as an ordered stream of lines. The
// channel closes when the process closes stdout and stderr.
func (h *Handle) Lines() <-chan string {
	return h.lines
}

// Wait blocks until the process has exited and returns its status. It is
// safe to call from multiple goroutines; all see the same status.
func (h *Handle) Wait() ExitStatus {
	<-h.done
	return h.exit
}

// Terminate asks the process to exit and escalates to a forceful kill if it
// has not done so within the grace period. Idempotent; terminating an
// already-exited process is a no-op.
func (h *Handle) Terminate() {
	h.termOnce.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}

		if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			// Signal delivery can fail on platforms without SIGTERM or
			// when the process just exited; a kill covers both.
			_ = h.cmd.Process.Kill()
			return
		}

		go func() {
			select {
			case <-h.done:
			case <-time.After(h.grace):
				_ = h.cmd.Process.Kill()
			}
		}()
	})
}

func (h *Handle) scan(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		h.lines <- scanner.Text()
	}
}

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{Code: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code == -1 {
			return ExitStatus{Code: -1, Signalled: true}
		}
		return ExitStatus{Code: code}
	}

	// Wait failed for a reason other than the process exiting badly.
	return ExitStatus{Code: -1, Signalled: true}
}
