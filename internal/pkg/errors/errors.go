package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid")
	ErrEmbedding     = errors.New("embedding failed")
	ErrStorage       = errors.New("storage failed")
	ErrConfiguration = errors.New("configuration error")
	ErrInternal      = errors.New("internal")

	ErrEmptyDocument = fmt.Errorf("%w: document is empty or too short", ErrInvalid)
)

func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func Configuration(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Embedding marks err as a failure of the embedding service. Errors that
// already carry the embedding kind are returned unchanged.
func Embedding(err error) error {
	if err == nil || errors.Is(err, ErrEmbedding) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbedding, err)
}

// Storage marks err as a vector store failure. Validation and configuration
// errors keep their own kind.
func Storage(err error) error {
	if err == nil || errors.Is(err, ErrStorage) || errors.Is(err, ErrInvalid) || errors.Is(err, ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsRetryable reports whether err comes from a backend or service and may
// succeed when retried. Input and configuration errors are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbedding) || errors.Is(err, ErrStorage)
}

// Kind names the error category for callers.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalid):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmbedding):
		return "embedding"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}
