package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/meetbrief/internal/metrics"
)

// SubmissionSuffix is the extension given to every persisted submission.
const SubmissionSuffix = ".mp3"

// DefaultFreeTierLimit is the longest audio accepted without rejection.
const DefaultFreeTierLimit = 60 * time.Second

// Prober measures audio duration in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Summarizer condenses a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcription string) (string, error)
}

// EventPublishFunc is a callback for publishing pipeline events.
type EventPublishFunc func(eventType string, payload map[string]any)

// Event types passed to EventPublishFunc.
const (
	EventCompleted = "completed"
	EventRejected  = "rejected"
	EventFailed    = "failed"
)

// Result is the success envelope.
type Result struct {
	Transcription string  `json:"transcription"`
	Summary       string  `json:"summary"`
	Duration      float64 `json:"duration"`
}

// Options configures a Pipeline.
type Options struct {
	Prober        Prober
	Transcriber   Transcriber
	Summarizer    Summarizer
	FreeTierLimit time.Duration
	TempDir       string // "" = OS default
	PublishEvent  EventPublishFunc
	Log           zerolog.Logger
}

// Pipeline processes submissions. It holds no per-request state, so one
// instance serves concurrent requests.
type Pipeline struct {
	prober      Prober
	transcriber Transcriber
	summarizer  Summarizer
	limit       time.Duration
	tempDir     string
	publish     EventPublishFunc
	log         zerolog.Logger

	inFlight atomic.Int64
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	limit := opts.FreeTierLimit
	if limit <= 0 {
		limit = DefaultFreeTierLimit
	}
	return &Pipeline{
		prober:      opts.Prober,
		transcriber: opts.Transcriber,
		summarizer:  opts.Summarizer,
		limit:       limit,
		tempDir:     opts.TempDir,
		publish:     opts.PublishEvent,
		log:         opts.Log.With().Str("component", "digest").Logger(),
	}
}

// InFlight returns the number of submissions currently being processed.
func (p *Pipeline) InFlight() int64 { return p.inFlight.Load() }

// FreeTierLimit returns the duration gate.
func (p *Pipeline) FreeTierLimit() time.Duration { return p.limit }

// Process persists body as a temporary audio file and runs it through
// probe, gate, transcription and summary. Any error returned is an *Error.
// The temporary file is removed on every exit path.
func (p *Pipeline) Process(ctx context.Context, body io.Reader) (*Result, error) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	start := time.Now()
	jobID := uuid.NewString()
	log := p.log.With().Str("job_id", jobID).Logger()

	res, derr := p.process(ctx, log, body)
	p.finish(log, jobID, res, derr, time.Since(start))
	if derr != nil {
		return nil, derr
	}
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, log zerolog.Logger, body io.Reader) (*Result, *Error) {
	// Received
	path, derr := p.persist(body)
	if derr != nil {
		return nil, derr
	}
	defer p.remove(log, path)
	log.Debug().Str("state", "received").Str("path", path).Msg("submission persisted")

	// Probed
	duration, err := p.prober.Duration(ctx, path)
	if err != nil {
		log.Info().Err(err).Msg("audio probe failed")
		return nil, ProbeFailed(err)
	}
	metrics.AudioDuration.Observe(duration)
	log.Debug().Str("state", "probed").Float64("duration", duration).Msg("audio probed")

	// Gated: nothing billable runs before this check.
	if limit := p.limit.Seconds(); duration > limit {
		log.Info().Float64("duration", duration).Float64("limit", limit).Msg("free tier limit exceeded")
		return nil, DurationExceeded(duration, limit)
	}

	// Transcribed
	text, err := p.transcriber.Transcribe(ctx, path)
	if err != nil {
		return nil, TranscriptionFailed(err)
	}
	log.Debug().Str("state", "transcribed").Int("chars", len(text)).Msg("transcription complete")

	// Summarized
	summary, err := p.summarizer.Summarize(ctx, text)
	if err != nil {
		return nil, SummaryFailed(err)
	}
	log.Debug().Str("state", "summarized").Int("chars", len(summary)).Msg("summary complete")

	return &Result{Transcription: text, Summary: summary, Duration: duration}, nil
}

// persist streams body into a uniquely named temporary file.
func (p *Pipeline) persist(body io.Reader) (string, *Error) {
	f, err := os.CreateTemp(p.tempDir, "meetbrief-*"+SubmissionSuffix)
	if err != nil {
		return "", Internal(fmt.Errorf("create temp file: %w", err))
	}
	path := f.Name()

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", TooLarge(maxErr.Limit)
		}
		return "", Internal(fmt.Errorf("write temp file: %w", err))
	}
	if n == 0 {
		os.Remove(path)
		return "", EmptyBody()
	}
	return path, nil
}

func (p *Pipeline) remove(log zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("temp file cleanup failed")
	}
}

func (p *Pipeline) finish(log zerolog.Logger, jobID string, res *Result, derr *Error, elapsed time.Duration) {
	payload := map[string]any{
		"job_id":     jobID,
		"elapsed_ms": elapsed.Milliseconds(),
	}

	event := EventCompleted
	switch {
	case derr == nil:
		metrics.SubmissionsTotal.WithLabelValues("ok").Inc()
		payload["duration"] = res.Duration
		payload["transcription_chars"] = len(res.Transcription)
		log.Info().Float64("duration", res.Duration).Dur("elapsed", elapsed).Msg("submission complete")
	default:
		metrics.SubmissionsTotal.WithLabelValues(derr.Kind.String()).Inc()
		payload["kind"] = derr.Kind.String()
		payload["error"] = derr.Message
		if derr.Duration != nil {
			payload["duration"] = *derr.Duration
		}
		if derr.Kind.Status() < http.StatusInternalServerError {
			event = EventRejected
		} else {
			event = EventFailed
			log.Error().Err(derr.Err).Str("kind", derr.Kind.String()).Msg("submission failed")
		}
	}

	if p.publish != nil {
		p.publish(event, payload)
	}
}
