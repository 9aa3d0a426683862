package transcribe

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// MaxFileSize is the largest file sent to the API in a single call (25 MiB).
const MaxFileSize int64 = 25 * 1024 * 1024

// AudioAPI is the subset of *openai.Client used for transcription.
type AudioAPI interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Splitter cuts a file into ordered, contiguous segments of the given length.
// Implemented by *media.Chunker.
type Splitter interface {
	Split(ctx context.Context, path string, segment time.Duration) ([]string, error)
}
