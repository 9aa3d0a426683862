package digest

import (
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure. Each kind maps to exactly one HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindEmptyBody
	KindTooLarge
	KindProbe
	KindDurationExceeded
	KindTranscription
	KindSummary
)

func (k Kind) String() string {
	switch k {
	case KindEmptyBody:
		return "empty_body"
	case KindTooLarge:
		return "too_large"
	case KindProbe:
		return "probe"
	case KindDurationExceeded:
		return "duration_exceeded"
	case KindTranscription:
		return "transcription"
	case KindSummary:
		return "summary"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindEmptyBody, KindProbe:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindDurationExceeded:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified pipeline failure. Message is the user-facing text;
// Duration is set once the audio has been probed.
type Error struct {
	Kind     Kind
	Message  string
	Duration *float64
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// ProbeFailed is the error for audio whose duration cannot be read.
func ProbeFailed(err error) *Error {
	return newError(KindProbe, err, "Impossible de lire le fichier audio. Format non supporté?")
}

// DurationExceeded is the free-tier rejection for audio longer than limit.
func DurationExceeded(duration, limit float64) *Error {
	e := newError(KindDurationExceeded, nil,
		"Fichier trop long (%ds). Limite gratuite: %ds. Pour les fichiers plus longs, contactez-nous.",
		int(duration), int(limit))
	e.Duration = &duration
	return e
}

// TranscriptionFailed wraps any transcription failure, chunking included.
func TranscriptionFailed(err error) *Error {
	return newError(KindTranscription, err, "Erreur lors de la transcription: %v", err)
}

// SummaryFailed wraps a summary generation failure.
func SummaryFailed(err error) *Error {
	return newError(KindSummary, err, "Erreur lors de la génération du résumé: %v", err)
}

// EmptyBody is returned when a request carries no audio bytes.
func EmptyBody() *Error {
	return newError(KindEmptyBody, nil, "Aucun fichier audio fourni")
}

// TooLarge is returned when the upload exceeds the configured cap.
func TooLarge(limit int64) *Error {
	return newError(KindTooLarge, nil, "Fichier trop volumineux. Maximum: %d octets.", limit)
}

// Internal wraps an unexpected failure, keeping its raw message.
func Internal(err error) *Error {
	return newError(KindInternal, err, "%v", err)
}
