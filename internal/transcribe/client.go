package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/snarg/meetbrief/internal/media"
	"github.com/snarg/meetbrief/internal/metrics"
)

// Options configures a Client.
type Options struct {
	API           AudioAPI
	Splitter      Splitter
	Model         string        // default whisper-1
	MaxFileSize   int64         // default 25 MiB
	ChunkDuration time.Duration // default 300s
	Log           zerolog.Logger
}

// Client transcribes audio files, chunking those above MaxFileSize.
type Client struct {
	api         AudioAPI
	splitter    Splitter
	model       string
	maxFileSize int64
	chunkDur    time.Duration
	log         zerolog.Logger
}

// NewClient creates a transcription client.
func NewClient(opts Options) *Client {
	c := &Client{
		api:         opts.API,
		splitter:    opts.Splitter,
		model:       opts.Model,
		maxFileSize: opts.MaxFileSize,
		chunkDur:    opts.ChunkDuration,
		log:         opts.Log.With().Str("component", "transcribe").Logger(),
	}
	if c.model == "" {
		c.model = openai.Whisper1
	}
	if c.maxFileSize <= 0 {
		c.maxFileSize = MaxFileSize
	}
	if c.chunkDur <= 0 {
		c.chunkDur = media.DefaultChunkDuration
	}
	return c
}

// Model returns the configured speech-to-text model.
func (c *Client) Model() string { return c.model }

// Transcribe returns the text of the audio file at path.
//
// Files up to the size limit go out in one call. Larger files are split and
// each chunk is transcribed in order; the texts are joined with single spaces
// and trimmed. Any failed call fails the whole transcription.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat audio file: %w", err)
	}

	if info.Size() <= c.maxFileSize {
		resp, err := c.transcribeFile(ctx, path, "whole")
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}

	c.log.Info().
		Int64("size", info.Size()).
		Int64("limit", c.maxFileSize).
		Msg("file exceeds transcription size limit, chunking")

	chunks, err := c.splitter.Split(ctx, path, c.chunkDur)
	if err != nil {
		return "", fmt.Errorf("chunking failed: %w", err)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("chunking failed: %w", media.ErrChunkingFailed)
	}
	defer os.RemoveAll(filepath.Dir(chunks[0]))

	metrics.TranscriptionChunksTotal.Add(float64(len(chunks)))

	var sb strings.Builder
	for i, chunk := range chunks {
		c.log.Debug().Int("chunk", i+1).Int("total", len(chunks)).Msg("transcribing chunk")

		resp, err := c.transcribeFile(ctx, chunk, "chunk")
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		sb.WriteString(resp.Text)
		sb.WriteByte(' ')

		if err := os.Remove(chunk); err != nil {
			c.log.Debug().Err(err).Str("chunk", chunk).Msg("chunk cleanup failed")
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

// transcribeFile issues one API call. Segment-level timestamps are requested
// alongside the text; only the text is consumed today.
func (c *Client) transcribeFile(ctx context.Context, path, mode string) (openai.AudioResponse, error) {
	start := time.Now()
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	metrics.ObserveExternalCall("transcription", mode, err, time.Since(start))
	if err != nil {
		return openai.AudioResponse{}, err
	}

	c.log.Debug().
		Str("mode", mode).
		Int("segments", len(resp.Segments)).
		Float64("audio_seconds", resp.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("transcription call complete")

	return resp, nil
}
