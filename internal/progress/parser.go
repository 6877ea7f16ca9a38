// Package progress turns the downloader's free-text output into a closed
// set of structured events. The tool's output is not a protocol, so the
// parser is tolerant: anything it does not recognize becomes a warning,
// never an error.
package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

// Kind discriminates the event variants.
type Kind int

const (
	KindProgress Kind = iota
	KindWarning
	KindTerminal
)

// Event is one structured observation about a running download.
type Event struct {
	Kind Kind

	// Progress fields
	Percent    float64
	Rate       string
	ETASeconds int

	// Warning text
	Text string

	// Terminal outcome
	Success   bool
	Detail    string
	Transient bool
}

// Example: [download]  45.2% of 5.00MiB at 1.00MiB/s ETA 00:03
var downloadRe = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%(?:\s+of\s+~?\s*\S+)?(?:\s+at\s+(\S+))?(?:\s+ETA\s+([0-9:]+))?`)

// Parser consumes output lines for a single job. Not safe for concurrent
// use; each job owns its own parser.
type Parser struct {
	lastPercent float64
	lastRate    string
	lastETA     int
	errOutput   strings.Builder
}

// New creates a parser for one job's output stream.
func New() *Parser {
	return &Parser{}
}

// ParseLine classifies one output line. The second return is false when the
// line carries nothing worth emitting (blank lines).
func (p *Parser) ParseLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	if m := downloadRe.FindStringSubmatch(line); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Event{Kind: KindWarning, Text: line}, true
		}

		// Out-of-order or merge-phase lines must never move percent
		// backwards.
		if percent < p.lastPercent {
			percent = p.lastPercent
		}
		p.lastPercent = percent

		if m[2] != "" {
			p.lastRate = m[2]
		}
		if m[3] != "" {
			p.lastETA = parseETA(m[3])
		}

		return Event{
			Kind:       KindProgress,
			Percent:    percent,
			Rate:       p.lastRate,
			ETASeconds: p.lastETA,
		}, true
	}

	if strings.HasPrefix(line, "ERROR:") {
		// Remember failure text for the terminal classification, but the
		// line itself stays non-fatal; the exit status decides.
		p.errOutput.WriteString(line)
		p.errOutput.WriteString("\n")
		return Event{Kind: KindWarning, Text: line}, true
	}

	return Event{Kind: KindWarning, Text: line}, true
}

// Percent returns the highest percent observed so far.
func (p *Parser) Percent() float64 {
	return p.lastPercent
}

// Finish reconciles the closed output stream with the process exit status
// into the single authoritative terminal event for the job. Neither signal
// alone is trusted: output can stop before the process exits, and a clean
// close can still precede a nonzero exit.
func (p *Parser) Finish(exit ytdlp.ExitStatus) Event {
	if exit.Success() {
		return Event{
			Kind:       KindTerminal,
			Success:    true,
			Percent:    100,
			Rate:       p.lastRate,
			ETASeconds: 0,
		}
	}

	detail := ytdlp.ClassifyOutput(p.errOutput.String())

	msg := detail.Message
	if exit.Signalled {
		msg = "terminated by signal"
	} else {
		msg = fmt.Sprintf("%s (exit code %d)", msg, exit.Code)
	}

	return Event{
		Kind:      KindTerminal,
		Success:   false,
		Percent:   p.lastPercent,
		Detail:    msg,
		Transient: detail.Transient,
	}
}

func parseETA(s string) int {
	parts := strings.Split(s, ":")
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
