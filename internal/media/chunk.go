package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// ErrChunkingFailed means segmentation was attempted and produced nothing.
// It is distinct from "no chunking needed", which never calls Split.
var ErrChunkingFailed = errors.New("audio chunking failed")

// DefaultChunkDuration is the segment length used when none is configured.
const DefaultChunkDuration = 300 * time.Second

// MaxOrderedChunks is the largest chunk count for which the zero-padded
// filenames (chunk_000 through chunk_999) still sort into temporal order.
const MaxOrderedChunks = 1000

const chunkPrefix = "chunk_"

// Chunker splits audio into fixed-duration segments with ffmpeg's segment
// muxer using stream copy, so samples are never re-decoded.
type Chunker struct {
	runner  Runner
	bin     string
	tempDir string
	log     zerolog.Logger
}

// NewChunker creates a chunker invoking bin (typically "ffmpeg"). Segment
// directories are created under tempDir, or the OS default when empty.
func NewChunker(runner Runner, bin, tempDir string, log zerolog.Logger) *Chunker {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Chunker{
		runner:  runner,
		bin:     bin,
		tempDir: tempDir,
		log:     log.With().Str("component", "chunker").Logger(),
	}
}

// Split writes contiguous segments of path into a fresh temporary directory
// and returns their paths in temporal order. The caller owns the returned
// files and their parent directory.
//
// On failure the directory is removed and the result is empty with an error
// wrapping ErrChunkingFailed.
func (c *Chunker) Split(ctx context.Context, path string, segment time.Duration) ([]string, error) {
	if segment <= 0 {
		segment = DefaultChunkDuration
	}

	dir, err := os.MkdirTemp(c.tempDir, "meetbrief-chunks-")
	if err != nil {
		return nil, fmt.Errorf("%w: create chunk dir: %v", ErrChunkingFailed, err)
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".mp3"
	}
	pattern := filepath.Join(dir, chunkPrefix+"%03d"+ext)

	_, err = c.runner.Run(ctx, c.bin,
		"-nostdin",
		"-i", path,
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(segment.Seconds(), 'f', -1, 64),
		"-c", "copy",
		pattern,
	)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %v", ErrChunkingFailed, err)
	}

	chunks, err := filepath.Glob(filepath.Join(dir, chunkPrefix+"*"+ext))
	if err != nil || len(chunks) == 0 {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: no segments produced", ErrChunkingFailed)
	}

	// Zero-padded names make lexicographic order equal temporal order.
	sort.Strings(chunks)

	if len(chunks) > MaxOrderedChunks {
		c.log.Warn().
			Int("chunks", len(chunks)).
			Int("limit", MaxOrderedChunks).
			Msg("chunk count exceeds ordered filename range; transcript order may be wrong")
	}

	c.log.Debug().
		Str("dir", dir).
		Int("chunks", len(chunks)).
		Dur("segment", segment).
		Msg("audio split")

	return chunks, nil
}
