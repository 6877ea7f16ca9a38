package ytdlp

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
)

// Embedded payloads plus the manifest produced at build time. The assets
// directory is populated by the release pipeline; a source checkout without
// binaries still compiles, it just resolves no platforms.
//
//go:embed all:assets
var embeddedAssets embed.FS

// Asset describes one platform build of the bundled downloader binary.
type Asset struct {
	File    string `json:"file"`
	Version string `json:"version"`
	SHA256  string `json:"sha256"`
}

// Manifest maps "GOOS/GOARCH" keys to embedded assets. It is static for the
// lifetime of the process and never mutated at runtime.
type Manifest map[string]Asset

// LoadManifest parses the embedded asset manifest.
func LoadManifest() (Manifest, error) {
	return loadManifestFS(embeddedAssets)
}

func loadManifestFS(fsys fs.FS) (Manifest, error) {
	data, err := fs.ReadFile(fsys, "assets/manifest.json")
	if err != nil {
		return nil, fmt.Errorf("read asset manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse asset manifest: %w", err)
	}

	return m, nil
}

// Lookup returns the asset for a platform, if one was bundled.
func (m Manifest) Lookup(goos, goarch string) (Asset, bool) {
	a, ok := m[goos+"/"+goarch]
	return a, ok
}

func readAsset(fsys fs.FS, name string) ([]byte, error) {
	return fs.ReadFile(fsys, "assets/"+name)
}

// binaryName returns the on-disk name of the extracted executable.
func binaryName(goos string) string {
	if goos == "windows" {
		return "yt-dlp.exe"
	}
	return "yt-dlp"
}
