// Package file provides JSON file persistence for the organized mapping and
// the sync state. Writes go through a temp file in the target directory
// followed by a rename, so a crash mid-write never leaves a torn file behind.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
)

// Default file locations under the user's home directory.
const (
	DefaultDirName       = ".starorg"
	DefaultOrganizedFile = "organized_stars.json"
	DefaultSyncStateFile = "sync_state.json"
)

// Ensure Store implements the interface.
var _ driven.StateStore = (*Store)(nil)

// Store persists run artifacts as JSON files.
type Store struct{}

// NewStore creates a file-backed state store.
func NewStore() *Store {
	return &Store{}
}

// DefaultPath returns ~/.starorg/<name>, falling back to the working
// directory when the home directory cannot be determined.
func DefaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, DefaultDirName, name)
}

// organizedFile is the on-disk envelope for the organized mapping.
type organizedFile struct {
	Version    int                   `json:"version"`
	UpdatedAt  time.Time             `json:"last_updated_at"`
	Categories domain.OrganizedStars `json:"categories"`
}

// LoadOrganized reads the organized mapping. A missing file returns
// domain.ErrNotFound.
func (s *Store) LoadOrganized(_ context.Context, path string) (domain.OrganizedStars, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("organized mapping %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read organized mapping: %w", err)
	}

	var envelope organizedFile
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Categories != nil {
		return envelope.Categories, nil
	}

	// Legacy layout: the bare category map with no envelope.
	var organized domain.OrganizedStars
	if err := json.Unmarshal(raw, &organized); err != nil {
		return nil, fmt.Errorf("decode organized mapping %s: %w", path, err)
	}
	return organized, nil
}

// SaveOrganized atomically writes the organized mapping.
func (s *Store) SaveOrganized(_ context.Context, path string, organized domain.OrganizedStars) error {
	envelope := organizedFile{
		Version:    1,
		UpdatedAt:  time.Now().UTC(),
		Categories: organized,
	}
	return writeJSON(path, envelope)
}

// syncStateV1 is the original schema: a flat list of synced URLs.
type syncStateV1 struct {
	Version     int      `json:"version"`
	SyncedRepos []string `json:"synced_repos"`
}

// LoadSyncState reads the sync state, migrating the v1 flat-list schema in
// memory. A missing file returns domain.ErrNotFound.
func (s *Store) LoadSyncState(_ context.Context, path string) (*domain.SyncState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("sync state %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	var state domain.SyncState
	if err := json.Unmarshal(raw, &state); err == nil && state.Synced != nil {
		if state.ListIDs == nil {
			state.ListIDs = make(map[string]string)
		}
		return &state, nil
	}

	// v1: synced_repos was a URL array and list ids were not recorded.
	var v1 syncStateV1
	if err := json.Unmarshal(raw, &v1); err != nil {
		return nil, fmt.Errorf("decode sync state %s: %w", path, err)
	}
	migrated := domain.NewSyncState()
	for _, url := range v1.SyncedRepos {
		migrated.MarkSynced(url, "")
	}
	return migrated, nil
}

// SaveSyncState atomically writes the sync state at the current version.
func (s *Store) SaveSyncState(_ context.Context, path string, state *domain.SyncState) error {
	state.Version = domain.SyncStateVersion
	state.UpdatedAt = time.Now().UTC()
	return writeJSON(path, state)
}

// Backup copies the file at path to a timestamped sibling and returns the
// copy's path.
func (s *Store) Backup(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("backup source %s: %w", path, domain.ErrNotFound)
		}
		return "", fmt.Errorf("read backup source: %w", err)
	}

	backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().UTC().Format("20060102T150405"))
	if err := os.WriteFile(backupPath, raw, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backupPath, nil
}

// writeJSON writes v as indented JSON via temp file + rename in the target
// directory.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
