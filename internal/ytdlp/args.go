package ytdlp

import (
	"fmt"

	"github.com/anilpdv/video-downloader/internal/model"
)

// Spec carries the per-job arguments for one download process.
type Spec struct {
	URL            string
	FormatType     string // model.FormatAudio or model.FormatVideo
	Quality        string // model.QualityLowest, Medium or Highest
	OutputTemplate string // passed verbatim to -o
}

// Format strings for the external tool, one per (type, quality) pair.
const (
	formatAudioBest   = "bestaudio"
	formatVideoLow    = "worstvideo[ext=mp4]+worstaudio[ext=m4a]/worst[ext=mp4]"
	formatVideoMedium = "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]"
	formatVideoHigh   = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]"
)

// BuildArgs derives the downloader command line from a job spec. The
// --newline and --progress flags force the line-oriented progress output
// that the parser understands.
func BuildArgs(s Spec) ([]string, error) {
	var args []string

	switch s.FormatType {
	case model.FormatAudio:
		args = append(args,
			"-f", formatAudioBest,
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", "0",
		)
	case model.FormatVideo:
		format, err := videoFormat(s.Quality)
		if err != nil {
			return nil, err
		}
		args = append(args, "-f", format)
	default:
		return nil, fmt.Errorf("unknown format type %q", s.FormatType)
	}

	args = append(args,
		"-o", s.OutputTemplate,
		"--newline",
		"--progress",
		"--no-warnings",
		s.URL,
	)

	return args, nil
}

func videoFormat(quality string) (string, error) {
	switch quality {
	case model.QualityLowest:
		return formatVideoLow, nil
	case model.QualityMedium:
		return formatVideoMedium, nil
	case model.QualityHighest, "":
		return formatVideoHigh, nil
	default:
		return "", fmt.Errorf("unknown quality %q", quality)
	}
}
