package tcl

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceShutdown is returned when the LetterService has already been shutdown.
	ErrServiceShutdown = errors.New("letter service is shutdown")

	// ErrValidation is matched (errors.Is) by every letter validation failure.
	ErrValidation = errors.New("letter failed validation")

	// ErrDuplicateSkipped signals that a letter with the same UniqueDocID is already queued.
	// It is not an error for callers of CreateLetter, the letter is simply dropped.
	ErrDuplicateSkipped = errors.New("duplicate letter skipped")

	// ErrInvalidDocumentFormat is returned when a retrieved document does not start with the PDF magic bytes.
	ErrInvalidDocumentFormat = errors.New("retrieved document is not a pdf")

	// ErrDuplicateFileName is returned when two different document paths share a basename inside one batch.
	ErrDuplicateFileName = errors.New("two documents share the same file name")

	// ErrMissingCredentials is returned when no api id/key (or user/pass) pair was configured.
	ErrMissingCredentials = errors.New("api credentials are required")

	// ErrCallbacksRequired is returned when the interval mode is configured without receipt and error callbacks.
	ErrCallbacksRequired = errors.New("interval mode requires receipt and error callbacks")

	// ErrInvalidFlushMode is returned for an unknown SendOn value or a missing mode value.
	ErrInvalidFlushMode = errors.New("invalid flush mode")

	// ErrStorageClosed is returned by storages used after Close.
	ErrStorageClosed = errors.New("queue storage closed")
)

// MissingFieldError reports a required letter field that was absent or empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// Is allows errors.Is(err, ErrValidation).
func (e *MissingFieldError) Is(target error) bool { return target == ErrValidation }

// FileNotFoundError reports a document path that is not a readable file.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("document %q not found or unreadable: %v", e.Path, e.Err)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, ErrValidation).
func (e *FileNotFoundError) Is(target error) bool { return target == ErrValidation }

// PackagingError aborts a flush when the batch archive could not be built.
type PackagingError struct {
	BatchID string
	Err     error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging batch %s failed: %v", e.BatchID, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// SubmissionError carries a transport failure or a non-2xx response from the print api.
type SubmissionError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission failed: %v", e.Err)
	}

	return fmt.Sprintf("submission failed with status %d: %s", e.StatusCode, string(e.Body))
}

func (e *SubmissionError) Unwrap() error { return e.Err }
