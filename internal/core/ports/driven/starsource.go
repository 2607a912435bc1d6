package driven

import (
	"context"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

// Liveness is the result of probing whether a starred repository still
// exists upstream.
type Liveness int

const (
	// LivenessAlive means the repository responded normally.
	LivenessAlive Liveness = iota

	// LivenessDead means the repository is gone (404/410/451) or access was
	// permanently revoked.
	LivenessDead

	// LivenessUncertain means the probe was inconclusive (timeout, rate
	// limit) and should not be acted on.
	LivenessUncertain
)

// StarSource provides read access to the user's starred repositories.
type StarSource interface {
	// ListStarred returns all starred repositories, newest star first.
	// limit caps the number fetched when > 0 (test runs).
	ListStarred(ctx context.Context, limit int) ([]domain.StarredRepo, error)

	// FetchReadme returns a trimmed readme excerpt for owner/name, or an
	// empty string when the repository has no readme.
	FetchReadme(ctx context.Context, fullName string) (string, error)

	// CheckAlive probes whether the repository still exists upstream.
	CheckAlive(ctx context.Context, fullName string) (Liveness, error)

	// Validate checks credentials by making a lightweight API call.
	Validate(ctx context.Context) error
}
