package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
)

// mockClassifier implements driven.Classifier with pluggable behaviour.
type mockClassifier struct {
	createFn func(ctx context.Context, corpus []domain.RepoMetadata, want int) ([]domain.Category, error)
	assignFn func(ctx context.Context, meta domain.RepoMetadata, categories []domain.Category) (domain.Assignment, error)
	pingErr  error

	createCalls atomic.Int64
	assignCalls atomic.Int64
}

func (m *mockClassifier) CreateCategories(ctx context.Context, corpus []domain.RepoMetadata, want int) ([]domain.Category, error) {
	m.createCalls.Add(1)
	if m.createFn == nil {
		return nil, fmt.Errorf("createFn not set")
	}
	return m.createFn(ctx, corpus, want)
}

func (m *mockClassifier) AssignCategory(ctx context.Context, meta domain.RepoMetadata, categories []domain.Category) (domain.Assignment, error) {
	m.assignCalls.Add(1)
	if m.assignFn == nil {
		return domain.Assignment{}, fmt.Errorf("assignFn not set")
	}
	return m.assignFn(ctx, meta, categories)
}

func (m *mockClassifier) ModelName() string { return "mock-model" }

func (m *mockClassifier) Ping(context.Context) error { return m.pingErr }

func (m *mockClassifier) Close() error { return nil }

// mockListAPI implements driven.ListAPI, tracking every call.
type mockListAPI struct {
	mu sync.Mutex

	remote []driven.RemoteList

	listCalls    int
	created      []string
	deleted      []string
	resolveCalls int
	attachCalls  int
	attached     map[string][]string // listID -> node ids

	listErr    error
	createErr  error
	deleteErr  error
	createFn   func(name string) error
	deleteFn   func(id string) error
	resolveFn  func(refs []domain.RepoRef) (map[domain.RepoRef]string, map[domain.RepoRef]error, error)
	attachFn   func(listID string, nodeIDs []string) (map[string]error, error)
	nextListID int
}

func newMockListAPI() *mockListAPI {
	return &mockListAPI{attached: make(map[string][]string)}
}

func (m *mockListAPI) ListLists(context.Context) ([]driven.RemoteList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]driven.RemoteList(nil), m.remote...), nil
}

func (m *mockListAPI) CreateList(_ context.Context, name, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFn != nil {
		if err := m.createFn(name); err != nil {
			return "", err
		}
	} else if m.createErr != nil {
		return "", m.createErr
	}
	m.nextListID++
	id := fmt.Sprintf("L_%d", m.nextListID)
	m.created = append(m.created, name)
	return id, nil
}

func (m *mockListAPI) DeleteList(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteFn != nil {
		if err := m.deleteFn(id); err != nil {
			return err
		}
	} else if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockListAPI) ResolveRepoIDs(_ context.Context, refs []domain.RepoRef) (map[domain.RepoRef]string, map[domain.RepoRef]error, error) {
	m.mu.Lock()
	m.resolveCalls++
	fn := m.resolveFn
	m.mu.Unlock()

	if fn != nil {
		return fn(refs)
	}
	ids := make(map[domain.RepoRef]string, len(refs))
	for _, ref := range refs {
		ids[ref] = "N_" + ref.FullName()
	}
	return ids, nil, nil
}

func (m *mockListAPI) AddToList(_ context.Context, listID string, nodeIDs []string) (map[string]error, error) {
	m.mu.Lock()
	m.attachCalls++
	fn := m.attachFn
	m.mu.Unlock()

	if fn != nil {
		return fn(listID, nodeIDs)
	}
	m.mu.Lock()
	m.attached[listID] = append(m.attached[listID], nodeIDs...)
	m.mu.Unlock()
	return nil, nil
}

func (m *mockListAPI) mutationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created) + len(m.deleted) + m.attachCalls
}

// mockStarSource implements driven.StarSource.
type mockStarSource struct {
	stars       []domain.StarredRepo
	readmes     map[string]string
	liveness    map[string]driven.Liveness
	listErr     error
	validateErr error

	listCalls atomic.Int64
}

func (m *mockStarSource) ListStarred(_ context.Context, limit int) ([]domain.StarredRepo, error) {
	m.listCalls.Add(1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	stars := m.stars
	if limit > 0 && len(stars) > limit {
		stars = stars[:limit]
	}
	return append([]domain.StarredRepo(nil), stars...), nil
}

func (m *mockStarSource) FetchReadme(_ context.Context, fullName string) (string, error) {
	return m.readmes[fullName], nil
}

func (m *mockStarSource) CheckAlive(_ context.Context, fullName string) (driven.Liveness, error) {
	if liveness, found := m.liveness[fullName]; found {
		return liveness, nil
	}
	return driven.LivenessAlive, nil
}

func (m *mockStarSource) Validate(context.Context) error { return m.validateErr }

// memStore is an in-memory driven.StateStore.
type memStore struct {
	mu sync.Mutex

	organized map[string]domain.OrganizedStars
	syncState map[string]*domain.SyncState

	organizedSaves int
	syncSaves      int
	backups        []string
}

func newMemStore() *memStore {
	return &memStore{
		organized: make(map[string]domain.OrganizedStars),
		syncState: make(map[string]*domain.SyncState),
	}
}

func (s *memStore) LoadOrganized(_ context.Context, path string) (domain.OrganizedStars, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	organized, found := s.organized[path]
	if !found {
		return nil, domain.ErrNotFound
	}
	return organized, nil
}

func (s *memStore) SaveOrganized(_ context.Context, path string, organized domain.OrganizedStars) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizedSaves++
	copied := make(domain.OrganizedStars, len(organized))
	for name, bucket := range organized {
		repos := append([]domain.CategorizedRepo(nil), bucket.Repos...)
		copied[name] = &domain.CategoryBucket{Description: bucket.Description, Repos: repos}
	}
	s.organized[path] = copied
	return nil
}

func (s *memStore) LoadSyncState(_ context.Context, path string) (*domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, found := s.syncState[path]
	if !found {
		return nil, domain.ErrNotFound
	}
	return state, nil
}

func (s *memStore) SaveSyncState(_ context.Context, path string, state *domain.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncSaves++
	copied := domain.NewSyncState()
	for k, v := range state.ListIDs {
		copied.ListIDs[k] = v
	}
	for k, v := range state.Synced {
		copied.Synced[k] = v
	}
	s.syncState[path] = copied
	return nil
}

func (s *memStore) Backup(_ context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.organized[path]; !found {
		return "", domain.ErrNotFound
	}
	backupPath := path + ".bak"
	s.backups = append(s.backups, backupPath)
	return backupPath, nil
}
