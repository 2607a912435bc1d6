package domain

import "time"

// SyncStateVersion is the current persisted sync-state schema version.
// Version 1 was a flat list of synced URLs; version 2 adds the per-category
// remote list ids and records which category each repo was attached to.
const SyncStateVersion = 2

// SyncState records remote progress: which category maps to which remote
// list, and which repositories have had their attach mutation acknowledged.
// It is append/update only; a crash mid-run leaves it consistent with the
// mutations that actually completed.
type SyncState struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"last_updated_at"`

	// ListIDs maps category name to the remote list id it was resolved or
	// created as.
	ListIDs map[string]string `json:"list_ids"`

	// Synced maps canonical repo URL to the category whose list the repo
	// was successfully attached to.
	Synced map[string]string `json:"synced_repos"`
}

// NewSyncState returns an empty sync state at the current version.
func NewSyncState() *SyncState {
	return &SyncState{
		Version: SyncStateVersion,
		ListIDs: make(map[string]string),
		Synced:  make(map[string]string),
	}
}

// IsSynced reports whether the repo URL has an acknowledged attach.
func (s *SyncState) IsSynced(url string) bool {
	_, ok := s.Synced[CanonicalRepoURL(url)]
	return ok
}

// MarkSynced records an acknowledged attach of repo URL to category.
func (s *SyncState) MarkSynced(url, category string) {
	if u := CanonicalRepoURL(url); u != "" {
		s.Synced[u] = category
	}
}

// ListID returns the remote list id recorded for a category, if any.
func (s *SyncState) ListID(category string) (string, bool) {
	id, ok := s.ListIDs[category]
	return id, ok && id != ""
}

// SetListID records the remote list id for a category.
func (s *SyncState) SetListID(category, id string) {
	s.ListIDs[category] = id
}

// SyncedCount returns the number of acknowledged attaches.
func (s *SyncState) SyncedCount() int {
	return len(s.Synced)
}
