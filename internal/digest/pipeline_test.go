package digest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/meetbrief/internal/media"
)

type fakeProber struct {
	duration float64
	err      error
	paths    []string
}

func (f *fakeProber) Duration(_ context.Context, path string) (float64, error) {
	f.paths = append(f.paths, path)
	return f.duration, f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
	// data holds the bytes the transcriber saw on disk.
	data []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	f.calls++
	f.data, _ = os.ReadFile(path)
	return f.text, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
	input   string
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	f.calls++
	f.input = text
	return f.summary, f.err
}

type recordedEvent struct {
	kind    string
	payload map[string]any
}

type harness struct {
	pipeline    *Pipeline
	prober      *fakeProber
	transcriber *fakeTranscriber
	summarizer  *fakeSummarizer
	tempDir     string
	events      []recordedEvent
}

func newHarness(t *testing.T, duration float64) *harness {
	t.Helper()
	h := &harness{
		prober:      &fakeProber{duration: duration},
		transcriber: &fakeTranscriber{text: "Bonjour, on commence la réunion."},
		summarizer:  &fakeSummarizer{summary: "## Points clés\n- Début de réunion"},
		tempDir:     t.TempDir(),
	}
	h.pipeline = New(Options{
		Prober:        h.prober,
		Transcriber:   h.transcriber,
		Summarizer:    h.summarizer,
		FreeTierLimit: 60 * time.Second,
		TempDir:       h.tempDir,
		PublishEvent: func(kind string, payload map[string]any) {
			h.events = append(h.events, recordedEvent{kind, payload})
		},
		Log: zerolog.Nop(),
	})
	return h
}

func (h *harness) assertNoTempFiles(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %d", len(entries))
	}
}

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v (%T), want *digest.Error", err, err)
	}
	return derr
}

func TestProcess_Success(t *testing.T) {
	h := newHarness(t, 30.0)
	audio := []byte("fake mp3 bytes")

	res, err := h.pipeline.Process(context.Background(), bytes.NewReader(audio))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Duration != 30.0 {
		t.Errorf("Duration = %v, want 30", res.Duration)
	}
	if res.Transcription != h.transcriber.text {
		t.Errorf("Transcription = %q", res.Transcription)
	}
	if res.Summary != h.summarizer.summary {
		t.Errorf("Summary = %q", res.Summary)
	}
	if h.transcriber.calls != 1 || h.summarizer.calls != 1 {
		t.Errorf("calls: transcribe=%d summarize=%d, want 1 each", h.transcriber.calls, h.summarizer.calls)
	}
	if !bytes.Equal(h.transcriber.data, audio) {
		t.Errorf("transcriber saw %q, want request body", h.transcriber.data)
	}
	if h.summarizer.input != h.transcriber.text {
		t.Errorf("summarizer input = %q", h.summarizer.input)
	}
	if got := filepath.Ext(h.prober.paths[0]); got != SubmissionSuffix {
		t.Errorf("temp file suffix = %q, want %q", got, SubmissionSuffix)
	}
	h.assertNoTempFiles(t)

	if len(h.events) != 1 || h.events[0].kind != EventCompleted {
		t.Fatalf("events = %+v, want one completed", h.events)
	}
	if h.events[0].payload["duration"] != 30.0 {
		t.Errorf("event duration = %v", h.events[0].payload["duration"])
	}
}

func TestProcess_DurationGate(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		wantErr  bool
	}{
		{"under_limit", 59.9, false},
		{"at_limit", 60.0, false},
		{"over_limit", 60.01, true},
		{"ninety_seconds", 90.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.duration)
			_, err := h.pipeline.Process(context.Background(), strings.NewReader("audio"))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Process: %v", err)
				}
				return
			}

			derr := asError(t, err)
			if derr.Kind != KindDurationExceeded {
				t.Fatalf("Kind = %v, want duration_exceeded", derr.Kind)
			}
			if derr.Kind.Status() != http.StatusForbidden {
				t.Errorf("Status = %d, want 403", derr.Kind.Status())
			}
			if derr.Duration == nil || *derr.Duration != tt.duration {
				t.Errorf("Duration = %v, want %v", derr.Duration, tt.duration)
			}
			if !strings.Contains(derr.Message, "Limite gratuite: 60s") {
				t.Errorf("Message = %q", derr.Message)
			}
			if !strings.Contains(derr.Message, fmt.Sprintf("(%ds)", int(tt.duration))) {
				t.Errorf("Message = %q, want truncated duration", derr.Message)
			}
			if h.transcriber.calls != 0 || h.summarizer.calls != 0 {
				t.Errorf("external calls issued past the gate: transcribe=%d summarize=%d",
					h.transcriber.calls, h.summarizer.calls)
			}
			h.assertNoTempFiles(t)
			if h.events[0].kind != EventRejected {
				t.Errorf("event = %q, want rejected", h.events[0].kind)
			}
		})
	}
}

func TestProcess_ProbeFailure(t *testing.T) {
	h := newHarness(t, 0)
	h.prober.err = fmt.Errorf("%w: unexpected output %q", media.ErrProbe, "")

	_, err := h.pipeline.Process(context.Background(), strings.NewReader("not audio"))
	derr := asError(t, err)
	if derr.Kind != KindProbe || derr.Kind.Status() != http.StatusBadRequest {
		t.Fatalf("Kind = %v, want probe/400", derr.Kind)
	}
	if derr.Duration != nil {
		t.Errorf("Duration = %v, want nil", *derr.Duration)
	}
	if !errors.Is(err, media.ErrProbe) {
		t.Error("error chain lost media.ErrProbe")
	}
	if h.transcriber.calls != 0 {
		t.Error("transcriber called after probe failure")
	}
	h.assertNoTempFiles(t)
}

func TestProcess_TranscriptionFailure(t *testing.T) {
	h := newHarness(t, 30)
	h.transcriber.err = errors.New("connection reset")

	_, err := h.pipeline.Process(context.Background(), strings.NewReader("audio"))
	derr := asError(t, err)
	if derr.Kind != KindTranscription || derr.Kind.Status() != http.StatusInternalServerError {
		t.Fatalf("Kind = %v, want transcription/500", derr.Kind)
	}
	if derr.Message != "Erreur lors de la transcription: connection reset" {
		t.Errorf("Message = %q", derr.Message)
	}
	if h.summarizer.calls != 0 {
		t.Error("summarizer called after transcription failure")
	}
	// Cleanup is guaranteed on the failure path too.
	h.assertNoTempFiles(t)
	if h.events[0].kind != EventFailed {
		t.Errorf("event = %q, want failed", h.events[0].kind)
	}
}

func TestProcess_ChunkingFailure(t *testing.T) {
	h := newHarness(t, 45)
	h.transcriber.err = fmt.Errorf("chunking failed: %w", media.ErrChunkingFailed)

	_, err := h.pipeline.Process(context.Background(), strings.NewReader("audio"))
	derr := asError(t, err)
	if derr.Kind != KindTranscription {
		t.Fatalf("Kind = %v, want transcription", derr.Kind)
	}
	if !errors.Is(err, media.ErrChunkingFailed) {
		t.Error("error chain lost media.ErrChunkingFailed")
	}
	h.assertNoTempFiles(t)
}

func TestProcess_SummaryFailure(t *testing.T) {
	h := newHarness(t, 30)
	h.summarizer.err = errors.New("quota exceeded")

	_, err := h.pipeline.Process(context.Background(), strings.NewReader("audio"))
	derr := asError(t, err)
	if derr.Kind != KindSummary {
		t.Fatalf("Kind = %v, want summary", derr.Kind)
	}
	if !strings.HasPrefix(derr.Message, "Erreur lors de la génération du résumé: ") {
		t.Errorf("Message = %q", derr.Message)
	}
	h.assertNoTempFiles(t)
}

func TestProcess_EmptyBody(t *testing.T) {
	h := newHarness(t, 30)

	_, err := h.pipeline.Process(context.Background(), strings.NewReader(""))
	derr := asError(t, err)
	if derr.Kind != KindEmptyBody || derr.Kind.Status() != http.StatusBadRequest {
		t.Fatalf("Kind = %v, want empty_body/400", derr.Kind)
	}
	if len(h.prober.paths) != 0 {
		t.Error("prober called for empty body")
	}
	h.assertNoTempFiles(t)
}

func TestProcess_TooLarge(t *testing.T) {
	h := newHarness(t, 30)
	rec := httptest.NewRecorder()
	body := http.MaxBytesReader(rec, io.NopCloser(strings.NewReader("0123456789")), 4)

	_, err := h.pipeline.Process(context.Background(), body)
	derr := asError(t, err)
	if derr.Kind != KindTooLarge || derr.Kind.Status() != http.StatusRequestEntityTooLarge {
		t.Fatalf("Kind = %v, want too_large/413", derr.Kind)
	}
	if !strings.Contains(derr.Message, "4") {
		t.Errorf("Message = %q, want limit", derr.Message)
	}
	h.assertNoTempFiles(t)
}

func TestProcess_InFlight(t *testing.T) {
	h := newHarness(t, 30)
	var seen int64
	h.pipeline.summarizer = summarizeFunc(func(context.Context, string) (string, error) {
		seen = h.pipeline.InFlight()
		return "ok", nil
	})

	if _, err := h.pipeline.Process(context.Background(), strings.NewReader("audio")); err != nil {
		t.Fatal(err)
	}
	if seen != 1 {
		t.Errorf("InFlight during processing = %d, want 1", seen)
	}
	if got := h.pipeline.InFlight(); got != 0 {
		t.Errorf("InFlight after processing = %d, want 0", got)
	}
}

type summarizeFunc func(context.Context, string) (string, error)

func (f summarizeFunc) Summarize(ctx context.Context, text string) (string, error) { return f(ctx, text) }

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindProbe, 400},
		{KindEmptyBody, 400},
		{KindDurationExceeded, 403},
		{KindTooLarge, 413},
		{KindTranscription, 500},
		{KindSummary, 500},
		{KindInternal, 500},
	}
	for _, tt := range tests {
		if got := tt.kind.Status(); got != tt.want {
			t.Errorf("%v.Status() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(Options{Log: zerolog.Nop()})
	if p.FreeTierLimit() != DefaultFreeTierLimit {
		t.Errorf("FreeTierLimit = %s, want %s", p.FreeTierLimit(), DefaultFreeTierLimit)
	}
}
