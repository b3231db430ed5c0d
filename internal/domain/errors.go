package domain

import "errors"

var (
	// ErrMalformedMessage is returned when a queue payload fails to decode
	// or validate at the broker boundary.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrDuplicateJob is returned when creating a job whose id already exists.
	ErrDuplicateJob = errors.New("duplicate job")

	// ErrNotFound is returned when a job cannot be found in the ledger.
	ErrNotFound = errors.New("job not found")

	// ErrStaleTransition is returned when a conditional transition loses the
	// race: the persisted state no longer matches the expected state.
	ErrStaleTransition = errors.New("stale transition")

	// ErrInputUnavailable is returned when the input object cannot be fetched.
	ErrInputUnavailable = errors.New("input unavailable")

	// ErrConversionFailed is returned when the conversion operation fails or
	// exceeds its timeout.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrStorageWriteFailed is returned when the converted output cannot be
	// written to the object store.
	ErrStorageWriteFailed = errors.New("storage write failed")

	// ErrRetriesExhausted is returned when a job has hit the retry ceiling.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Error kind names stored on the ledger and exposed to status queries.
const (
	KindMalformedMessage   = "MalformedMessage"
	KindDuplicateJob       = "DuplicateJob"
	KindNotFound           = "NotFound"
	KindStaleTransition    = "StaleTransition"
	KindInputUnavailable   = "InputUnavailable"
	KindConversionFailed   = "ConversionFailed"
	KindStorageWriteFailed = "StorageWriteFailed"
	KindRetriesExhausted   = "RetriesExhausted"
)

// ErrorKind maps a taxonomy error to its ledger kind name. Unknown errors
// map to the empty string.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return KindMalformedMessage
	case errors.Is(err, ErrDuplicateJob):
		return KindDuplicateJob
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStaleTransition):
		return KindStaleTransition
	case errors.Is(err, ErrInputUnavailable):
		return KindInputUnavailable
	case errors.Is(err, ErrConversionFailed):
		return KindConversionFailed
	case errors.Is(err, ErrStorageWriteFailed):
		return KindStorageWriteFailed
	case errors.Is(err, ErrRetriesExhausted):
		return KindRetriesExhausted
	default:
		return ""
	}
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err should trigger a requeue.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
