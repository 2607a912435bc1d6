package driven

import (
	"context"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

// StateStore persists the two durable artifacts of a run: the organized
// mapping and the sync state. Saves are atomic; a concurrent reader never
// observes a partial write. Loading a missing file returns
// domain.ErrNotFound.
type StateStore interface {
	LoadOrganized(ctx context.Context, path string) (domain.OrganizedStars, error)
	SaveOrganized(ctx context.Context, path string, organized domain.OrganizedStars) error

	LoadSyncState(ctx context.Context, path string) (*domain.SyncState, error)
	SaveSyncState(ctx context.Context, path string, state *domain.SyncState) error

	// Backup copies the file at path aside and returns the copy's path.
	// Backing up a missing file returns domain.ErrNotFound.
	Backup(ctx context.Context, path string) (string, error)
}
