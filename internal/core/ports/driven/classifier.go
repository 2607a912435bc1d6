package driven

import (
	"context"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

// Classifier assigns starred repositories to topical categories using an
// external classification service.
//
// Failure classes are distinguished through the domain error taxonomy:
// oversized/malformed combined input surfaces as domain.ErrBatchTooLarge,
// temporary failures as domain.ErrTransient, throttling as
// domain.ErrThrottled. Responses are returned unvalidated; callers check
// category names against the taxonomy at the boundary.
type Classifier interface {
	// CreateCategories analyses the aggregate corpus and returns want named
	// categories with descriptions. Called once per full run.
	CreateCategories(ctx context.Context, corpus []domain.RepoMetadata, want int) ([]domain.Category, error)

	// AssignCategory picks exactly one category from the fixed taxonomy for
	// a single repository.
	AssignCategory(ctx context.Context, meta domain.RepoMetadata, categories []domain.Category) (domain.Assignment, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test
	// request. Used at startup before committing to a run.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
