package driven

import (
	"context"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

// RemoteList is a user list as it exists on the remote service.
type RemoteList struct {
	ID          string
	Name        string
	Description string
}

// ListAPI mutates the remote list feature. Implementations pace their own
// calls through a shared adaptive rate limiter; callers see throttling only
// as latency, never as an error.
type ListAPI interface {
	// ListLists returns every list owned by the authenticated user.
	ListLists(ctx context.Context) ([]RemoteList, error)

	// CreateList creates a list and returns its id.
	CreateList(ctx context.Context, name, description string) (string, error)

	// DeleteList removes a list. Deleting an already-deleted list is a
	// no-op, not an error.
	DeleteList(ctx context.Context, id string) error

	// ResolveRepoIDs resolves owner/name references to remote node ids in
	// one batched query. Unresolvable references come back in failed with a
	// domain.ErrValidation-classed error; the batch-level error is non-nil
	// only when the whole query failed.
	ResolveRepoIDs(ctx context.Context, refs []domain.RepoRef) (ids map[domain.RepoRef]string, failed map[domain.RepoRef]error, err error)

	// AddToList attaches node ids to a list in one batched mutation.
	// Per-item rejections come back in failed keyed by node id; the
	// batch-level error is non-nil when the mutation failed as a whole
	// (domain.ErrBatchTooLarge triggers bisection upstream).
	AddToList(ctx context.Context, listID string, nodeIDs []string) (failed map[string]error, err error)
}
