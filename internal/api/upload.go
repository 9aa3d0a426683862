package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/meetbrief/internal/digest"
)

// Processor runs one audio submission to completion.
type Processor interface {
	Process(ctx context.Context, body io.Reader) (*digest.Result, error)
}

// UploadHandler accepts raw audio bodies and responds with the transcription
// and summary. The whole body is the audio payload; multipart forms are not
// parsed.
type UploadHandler struct {
	processor Processor
	maxUpload int64
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler. maxUpload caps the request
// body in bytes; 0 disables the cap.
func NewUploadHandler(processor Processor, maxUpload int64, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		processor: processor,
		maxUpload: maxUpload,
		log:       log.With().Str("handler", "upload").Logger(),
	}
}

// Routes registers the submission endpoint at the root and at the
// /api/transcribe alias.
func (h *UploadHandler) Routes(r chi.Router) {
	for _, path := range []string{"/", "/api/transcribe"} {
		r.Post(path, h.Upload)
		r.Options(path, h.Preflight)
	}
}

// Upload handles POST / and POST /api/transcribe.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = r.Body
	if h.maxUpload > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	result, err := h.processor.Process(r.Context(), body)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// Preflight answers CORS preflight requests with an empty 200.
func (h *UploadHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
}

func (h *UploadHandler) writeFailure(w http.ResponseWriter, err error) {
	var derr *digest.Error
	if !errors.As(err, &derr) {
		derr = digest.Internal(err)
	}

	status := derr.Kind.Status()
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("kind", derr.Kind.String()).Msg("upload processing failed")
	}

	WriteJSON(w, status, ErrorResponse{Error: derr.Message, Duration: derr.Duration})
}
