package github

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

// RateLimitError represents a rate limit exceeded error with reset time.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Unwrap classifies rate limiting into the domain taxonomy.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrThrottled
}

// APIError represents a GitHub API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap maps the status code onto the domain taxonomy so errors.Is works
// across the port boundary.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == 401:
		return domain.ErrAuthInvalid
	case e.StatusCode == 404 || e.StatusCode == 410 || e.StatusCode == 451:
		return domain.ErrNotFound
	case e.StatusCode == 429:
		return domain.ErrThrottled
	case e.StatusCode >= 500:
		return domain.ErrTransient
	default:
		return nil
	}
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr) || errors.Is(err, domain.ErrThrottled)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrAuthInvalid)
}

// GraphQL error message fragments GitHub actually returns. The API gives no
// machine-readable codes for these conditions, so matching text is the only
// classification signal available.
const (
	msgResourceLimits  = "Resource limits"
	msgCouldNotResolve = "Could not resolve"
	msgSomethingWrong  = "Something went wrong"
)

// classifyGraphQLMessage maps a GraphQL error message onto the domain
// taxonomy. Unknown messages are terminal.
func classifyGraphQLMessage(msg string) error {
	switch {
	case strings.Contains(msg, msgResourceLimits):
		return fmt.Errorf("github: %s: %w", msg, domain.ErrBatchTooLarge)
	case strings.Contains(msg, msgCouldNotResolve):
		return fmt.Errorf("github: %s: %w", msg, domain.ErrValidation)
	case strings.Contains(msg, msgSomethingWrong):
		return fmt.Errorf("github: %s: %w", msg, domain.ErrTransient)
	default:
		return fmt.Errorf("github: graphql error: %s", msg)
	}
}
