package ytdlp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/logger"
)

// ProbeFunc runs a lightweight runnability check against an extracted
// binary and returns its reported version.
type ProbeFunc func(ctx context.Context, path string) (string, error)

// Resolver maps the host platform to an embedded binary asset, extracts it
// into the cache directory and memoizes the executable path for the process
// lifetime. Safe for concurrent use; all download workers share one Resolver.
type Resolver struct {
	cacheDir string
	manifest Manifest
	assets   fs.FS
	probe    ProbeFunc
	goos     string
	goarch   string
	log      *logger.Logger

	mu       sync.Mutex
	resolved string
}

// NewResolver creates a resolver over the embedded assets for the host
// platform.
func NewResolver(cacheDir string) (*Resolver, error) {
	manifest, err := LoadManifest()
	if err != nil {
		return nil, err
	}
	return &Resolver{
		cacheDir: cacheDir,
		manifest: manifest,
		assets:   embeddedAssets,
		probe:    versionProbe,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		log:      logger.Default().WithComponent("resolver"),
	}, nil
}

// Resolve returns the path to a runnable downloader binary. The first call
// extracts and probes; later calls return the memoized path.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != "" {
		return r.resolved, nil
	}

	asset, ok := r.manifest.Lookup(r.goos, r.goarch)
	if !ok {
		return "", apperrors.UnsupportedPlatform(r.goos, r.goarch)
	}

	binDir := filepath.Join(r.cacheDir, "bin")
	binPath := filepath.Join(binDir, binaryName(r.goos))
	markerPath := binPath + ".version"

	// A cached copy from an earlier run is reused only when its marker
	// matches the embedded version and it still runs.
	if cachedVersionMatches(markerPath, asset.Version) && fileExists(binPath) {
		if version, err := r.probe(ctx, binPath); err == nil {
			r.log.Info(ctx, "reusing cached downloader binary", map[string]interface{}{
				"path":    binPath,
				"version": strings.TrimSpace(version),
			})
			r.resolved = binPath
			return binPath, nil
		}
		r.log.Warn(ctx, "cached downloader binary failed probe, re-extracting", map[string]interface{}{
			"path": binPath,
		})
	}

	if err := r.extract(asset, binDir, binPath, markerPath); err != nil {
		return "", err
	}

	version, err := r.probe(ctx, binPath)
	if err != nil {
		// One more extraction attempt; a second consecutive probe failure
		// is fatal for this resolution.
		if err := r.extract(asset, binDir, binPath, markerPath); err != nil {
			return "", err
		}
		version, err = r.probe(ctx, binPath)
		if err != nil {
			return "", apperrors.ExtractionFailed("extracted binary failed runnability check").WithCause(err)
		}
	}

	r.log.Info(ctx, "downloader binary ready", map[string]interface{}{
		"path":    binPath,
		"version": strings.TrimSpace(version),
	})
	r.resolved = binPath
	return binPath, nil
}

// Check reports whether the binary resolves, without exposing the path.
// Used by the health checker.
func (r *Resolver) Check(ctx context.Context) error {
	_, err := r.Resolve(ctx)
	return err
}

func (r *Resolver) extract(asset Asset, binDir, binPath, markerPath string) error {
	payload, err := readAsset(r.assets, asset.File)
	if err != nil {
		return apperrors.UnsupportedPlatform(r.goos, r.goarch).WithCause(err)
	}

	if asset.SHA256 != "" {
		sum := sha256.Sum256(payload)
		if hex.EncodeToString(sum[:]) != strings.ToLower(asset.SHA256) {
			return apperrors.ExtractionFailed(fmt.Sprintf("checksum mismatch for %s", asset.File))
		}
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return apperrors.ExtractionFailed("create cache directory").WithCause(err)
	}

	// Write next to the target then rename, so a concurrent reader never
	// sees a half-written executable.
	tmp, err := os.CreateTemp(binDir, ".yt-dlp-*")
	if err != nil {
		return apperrors.ExtractionFailed("create temp file").WithCause(err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperrors.ExtractionFailed("write binary payload").WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperrors.ExtractionFailed("flush binary payload").WithCause(err)
	}

	if err := os.Chmod(tmpPath, 0o755); err != nil {
		os.Remove(tmpPath)
		return apperrors.ExtractionFailed("set executable permission").WithCause(err)
	}

	if err := os.Rename(tmpPath, binPath); err != nil {
		os.Remove(tmpPath)
		return apperrors.ExtractionFailed("move binary into place").WithCause(err)
	}

	if err := os.WriteFile(markerPath, []byte(asset.Version+"\n"), 0o644); err != nil {
		return apperrors.ExtractionFailed("write version marker").WithCause(err)
	}

	return nil
}

func cachedVersionMatches(markerPath, version string) bool {
	data, err := os.ReadFile(markerPath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == version
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// versionProbe runs `yt-dlp --version` as the runnability check.
func versionProbe(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, path, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}
