package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrThrottled indicates the remote API signalled rate limiting.
	// Throttled calls are never counted as item failures; they feed the
	// adaptive rate limiter and are retried.
	ErrThrottled = errors.New("throttled")

	// ErrBatchTooLarge indicates the remote rejected a combined request for
	// being oversized or malformed as a whole. Batches failing this way are
	// bisected rather than retried in the same shape.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrTransient indicates a temporary failure (network blip, remote 5xx)
	// worth retrying with backoff.
	ErrTransient = errors.New("transient failure")

	// ErrValidation indicates a response that failed boundary validation,
	// such as the classifier naming a category outside the taxonomy or a
	// repository that no longer resolves upstream. Terminal for the item.
	ErrValidation = errors.New("validation failed")

	// ErrAuthInvalid indicates the credentials are invalid or missing.
	// Fatal: the phase aborts immediately.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrClassifierUnavailable indicates the classification service is not
	// configured. Categorization phases cannot run without it.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// IsThrottled reports whether err is a rate-limit signal.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsSplittable reports whether err should trigger batch bisection.
func IsSplittable(err error) bool {
	return errors.Is(err, ErrBatchTooLarge)
}

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsValidation reports whether err is a terminal per-item validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
