package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/logger"
)

// Placement describes where a finished download ended up.
type Placement struct {
	Filename string
	Path     string
	Size     int64
}

// Placer moves finished downloads from their per-job staging directory into
// the media library, optionally mirroring them to object storage.
type Placer struct {
	mediaDir string
	mirror   *Mirror
	log      *logger.Logger
}

func NewPlacer(mediaDir string, mirror *Mirror) (*Placer, error) {
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Placer{
		mediaDir: mediaDir,
		mirror:   mirror,
		log:      logger.Default().WithComponent("library"),
	}, nil
}

// MediaDir returns the library root.
func (p *Placer) MediaDir() string {
	return p.mediaDir
}

// StagingDir creates and returns the scratch directory a job downloads into.
func (p *Placer) StagingDir(jobID uuid.UUID) (string, error) {
	dir := filepath.Join(p.mediaDir, ".staging", jobID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.StorageError(fmt.Sprintf("failed to create staging directory: %v", err))
	}
	return dir, nil
}

// Discard removes a job's staging directory. Safe to call whether or not
// anything was downloaded.
func (p *Placer) Discard(jobID uuid.UUID) {
	dir := filepath.Join(p.mediaDir, ".staging", jobID.String())
	if err := os.RemoveAll(dir); err != nil {
		p.log.Warn(context.Background(), "failed to remove staging directory", map[string]interface{}{
			"job_id": jobID.String(),
			"error":  err.Error(),
		})
	}
}

// Place moves the downloaded file out of staging into the library under a
// cleaned name derived from title, returning the final location. The staging
// directory is removed afterwards.
func (p *Placer) Place(ctx context.Context, jobID uuid.UUID, title string) (*Placement, error) {
	staging := filepath.Join(p.mediaDir, ".staging", jobID.String())

	src, err := largestFile(staging)
	if err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(filepath.Ext(src), ".")
	if ext == "" {
		ext = "bin"
	}
	if title == "" {
		base := filepath.Base(src)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	dest, filename := p.uniquePath(CleanFilename(title, ext))
	if err := moveFile(src, dest); err != nil {
		return nil, apperrors.StorageError(fmt.Sprintf("failed to place %s: %v", filename, err))
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, apperrors.StorageError(fmt.Sprintf("failed to stat placed file: %v", err))
	}

	p.Discard(jobID)

	p.log.Info(ctx, "placed download", map[string]interface{}{
		"job_id":   jobID.String(),
		"filename": filename,
		"size":     info.Size(),
	})

	if p.mirror != nil {
		if err := p.mirror.Upload(ctx, dest, filename); err != nil {
			// The local copy is the source of truth; a mirror failure
			// does not fail the job.
			p.log.Warn(ctx, "mirror upload failed", map[string]interface{}{
				"filename": filename,
				"error":    err.Error(),
			})
		}
	}

	return &Placement{
		Filename: filename,
		Path:     dest,
		Size:     info.Size(),
	}, nil
}

// uniquePath appends " (n)" before the extension until the name is free.
func (p *Placer) uniquePath(filename string) (string, string) {
	dest := filepath.Join(p.mediaDir, filename)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest, filename
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for i := 1; ; i++ {
		candidate := stem + " (" + strconv.Itoa(i) + ")" + ext
		dest = filepath.Join(p.mediaDir, candidate)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest, candidate
		}
	}
}

// largestFile picks the download artifact out of a staging directory,
// ignoring yt-dlp scratch files.
func largestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", apperrors.StorageError(fmt.Sprintf("failed to read staging directory: %v", err))
	}

	var best string
	var bestSize int64 = -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, name)
			bestSize = info.Size()
		}
	}

	if best == "" {
		return "", apperrors.StorageError("download finished but produced no file")
	}
	return best, nil
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(src)
}
