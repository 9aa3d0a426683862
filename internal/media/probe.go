package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrProbe is returned when the duration of a file cannot be determined.
// Callers treat it as "unknown duration".
var ErrProbe = errors.New("cannot determine audio duration")

// Prober measures container-level audio duration with ffprobe.
type Prober struct {
	runner Runner
	bin    string
}

// NewProber creates a prober invoking bin (typically "ffprobe").
func NewProber(runner Runner, bin string) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{runner: runner, bin: bin}
}

// Duration returns the duration of the file at path in seconds.
// Any failure (missing tool, unsupported format, non-numeric output) is
// reported as an error wrapping ErrProbe.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	out, err := p.runner.Run(ctx, p.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbe, err)
	}

	raw := strings.TrimSpace(out)
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unexpected output %q", ErrProbe, raw)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, fmt.Errorf("%w: invalid duration %v", ErrProbe, d)
	}
	return d, nil
}
