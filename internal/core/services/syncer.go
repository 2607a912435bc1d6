package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/starorg-cli/internal/batch"
	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
	"github.com/custodia-labs/starorg-cli/internal/logger"
)

// Sync defaults.
const (
	// DefaultResolveBatchSize is how many repos one aliased id query covers.
	DefaultResolveBatchSize = 40

	// DefaultAttachBatchSize is how many repos one aliased attach mutation
	// covers.
	DefaultAttachBatchSize = 10

	// DefaultSyncWorkers bounds concurrent sync mutations.
	DefaultSyncWorkers = 8

	// DefaultSyncSaveEvery checkpoints the sync state after this many
	// acknowledged attaches.
	DefaultSyncSaveEvery = 10
)

// SyncerConfig tunes the reconciliation engine.
type SyncerConfig struct {
	ResolveBatchSize int
	AttachBatchSize  int
	Workers          int
	SaveEvery        int
}

// Syncer reconciles the organized mapping against remote lists by diffing
// desired state against the durable sync state, issuing only the mutations
// that close the gap.
type Syncer struct {
	lists driven.ListAPI
	store driven.StateStore
	cfg   SyncerConfig
}

// SyncOutcome reports a reconciliation pass.
type SyncOutcome struct {
	Attached int
	Failed   int
	Skipped  int

	// ByCategory counts acknowledged attaches per category, including ones
	// from earlier runs recorded in the sync state.
	ByCategory map[string]int

	// Errors holds terminal per-repo failures keyed by canonical URL.
	Errors map[string]error

	// ListsCreated and ListsDeleted count list-level mutations this pass.
	ListsCreated int
	ListsDeleted int
}

// NewSyncer creates a reconciliation engine. Zero config fields fall back to
// the defaults.
func NewSyncer(lists driven.ListAPI, store driven.StateStore, cfg SyncerConfig) *Syncer {
	if cfg.ResolveBatchSize <= 0 {
		cfg.ResolveBatchSize = DefaultResolveBatchSize
	}
	if cfg.AttachBatchSize <= 0 {
		cfg.AttachBatchSize = DefaultAttachBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultSyncWorkers
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = DefaultSyncSaveEvery
	}
	return &Syncer{lists: lists, store: store, cfg: cfg}
}

// pendingRepo is one repo that still needs attaching.
type pendingRepo struct {
	category string
	url      string
	ref      domain.RepoRef
}

// attachItem is a resolved repo ready for the attach phase.
type attachItem struct {
	category string
	url      string
	nodeID   string
	listID   string
}

// Sync drives one reconciliation pass. The organized mapping is the desired
// state; state records what already happened and is checkpointed to
// statePath as attaches are acknowledged. With nothing to do it issues no
// remote calls at all.
func (s *Syncer) Sync(
	ctx context.Context,
	organized domain.OrganizedStars,
	state *domain.SyncState,
	statePath string,
	reset bool,
) (*SyncOutcome, error) {
	outcome := &SyncOutcome{
		ByCategory: make(map[string]int),
		Errors:     make(map[string]error),
	}
	for _, category := range state.Synced {
		if category != "" {
			outcome.ByCategory[category]++
		}
	}

	pending, skipped, parseFailures := collectPending(organized, state)
	outcome.Skipped = skipped
	for url, err := range parseFailures {
		outcome.Errors[url] = err
		outcome.Failed++
	}

	if len(pending) == 0 && !reset {
		logger.Info("Sync: everything already synced, nothing to do")
		return outcome, nil
	}

	logger.Section("Syncing %d repositories to lists", len(pending))

	// Discover once; Delete (reset only) and Resolve have no data
	// dependency, so they overlap.
	remote, err := s.lists.ListLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover remote lists: %w", err)
	}
	s.adoptRemoteLists(organized, state, remote)

	type deleteResult struct {
		deleted int
		err     error
	}
	deleteDone := make(chan deleteResult, 1)
	if reset {
		go func() {
			deleted, err := s.deleteStale(ctx, organized, remote)
			deleteDone <- deleteResult{deleted: deleted, err: err}
		}()
	} else {
		deleteDone <- deleteResult{}
	}

	nodeIDs, resolveFailed := s.resolve(ctx, pending)
	for _, p := range pending {
		if err, failed := resolveFailed[p.ref]; failed {
			outcome.Errors[p.url] = err
			outcome.Failed++
		}
	}

	del := <-deleteDone
	outcome.ListsDeleted = del.deleted
	if del.err != nil {
		return nil, fmt.Errorf("delete stale lists: %w", del.err)
	}

	created, createFailed, err := s.ensureLists(ctx, organized, state, pending, nodeIDs)
	if err != nil {
		return nil, err
	}
	outcome.ListsCreated = created
	if err := s.store.SaveSyncState(ctx, statePath, state); err != nil {
		return nil, fmt.Errorf("persist list ids: %w", err)
	}

	items := make([]attachItem, 0, len(pending))
	for _, p := range pending {
		nodeID, resolved := nodeIDs[p.ref]
		if !resolved {
			continue
		}
		if err, failed := createFailed[p.category]; failed {
			outcome.Errors[p.url] = err
			outcome.Failed++
			continue
		}
		listID, _ := state.ListID(p.category)
		items = append(items, attachItem{
			category: p.category,
			url:      p.url,
			nodeID:   nodeID,
			listID:   listID,
		})
	}

	attached, attachFailed := s.attach(ctx, items, state, statePath)
	outcome.Attached = attached
	for url, err := range attachFailed {
		outcome.Errors[url] = err
		outcome.Failed++
	}
	for _, item := range items {
		if _, failed := attachFailed[item.url]; !failed {
			outcome.ByCategory[item.category]++
		}
	}

	if err := s.store.SaveSyncState(ctx, statePath, state); err != nil {
		return nil, fmt.Errorf("persist sync state: %w", err)
	}

	logger.Info("Sync complete: %d attached, %d failed, %d already synced",
		outcome.Attached, outcome.Failed, outcome.Skipped)
	return outcome, nil
}

// collectPending diffs the organized mapping against the sync state.
func collectPending(organized domain.OrganizedStars, state *domain.SyncState) ([]pendingRepo, int, map[string]error) {
	var pending []pendingRepo
	skipped := 0
	parseFailures := make(map[string]error)

	categories := make([]string, 0, len(organized))
	for name := range organized {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, repo := range organized[category].Repos {
			url := domain.CanonicalRepoURL(repo.URL)
			if state.IsSynced(url) {
				skipped++
				continue
			}
			ref, ok := domain.ParseRepoURL(url)
			if !ok {
				parseFailures[url] = fmt.Errorf("not a repository URL: %w", domain.ErrValidation)
				continue
			}
			pending = append(pending, pendingRepo{category: category, url: url, ref: ref})
		}
	}
	return pending, skipped, parseFailures
}

// adoptRemoteLists records ids of remote lists whose names already match a
// category, so rename-free reruns reuse lists instead of recreating them.
// Matching is case-insensitive on the display name.
func (s *Syncer) adoptRemoteLists(organized domain.OrganizedStars, state *domain.SyncState, remote []driven.RemoteList) {
	byName := make(map[string]driven.RemoteList, len(remote))
	for _, list := range remote {
		byName[strings.ToLower(list.Name)] = list
	}
	for category := range organized {
		if _, known := state.ListID(category); known {
			continue
		}
		if list, found := byName[strings.ToLower(domain.DisplayName(category))]; found {
			state.SetListID(category, list.ID)
			logger.Debug("adopted existing list %q for %s", list.Name, category)
		}
	}
}

// deleteStale removes remote lists that no current category maps to. Only
// meaningful in reset mode. Every stale list is attempted; failures are
// joined so one stuck list does not hide the rest.
func (s *Syncer) deleteStale(ctx context.Context, organized domain.OrganizedStars, remote []driven.RemoteList) (int, error) {
	wanted := make(map[string]struct{}, len(organized))
	for category := range organized {
		wanted[strings.ToLower(domain.DisplayName(category))] = struct{}{}
	}

	deleted := 0
	var errs []error
	for _, list := range remote {
		if _, keep := wanted[strings.ToLower(list.Name)]; keep {
			continue
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.deleteList(ctx, list); err != nil {
			errs = append(errs, fmt.Errorf("delete list %q: %w", list.Name, err))
			continue
		}
		logger.Debug("deleted stale list %q", list.Name)
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// resolve maps refs to node ids through the batch pool. Unresolvable refs
// are reported, excluded, and never fatal.
func (s *Syncer) resolve(ctx context.Context, pending []pendingRepo) (map[domain.RepoRef]string, map[domain.RepoRef]error) {
	refs := make([]domain.RepoRef, 0, len(pending))
	seen := make(map[domain.RepoRef]struct{}, len(pending))
	for _, p := range pending {
		if _, dup := seen[p.ref]; dup {
			continue
		}
		seen[p.ref] = struct{}{}
		refs = append(refs, p.ref)
	}

	results := batch.Run(ctx, batch.Job[domain.RepoRef, domain.RepoRef, string]{
		Items:     refs,
		Workers:   s.cfg.Workers,
		BatchSize: s.cfg.ResolveBatchSize,
		Key:       func(ref domain.RepoRef) domain.RepoRef { return ref },
		Work: func(ctx context.Context, items []domain.RepoRef) (map[domain.RepoRef]string, map[domain.RepoRef]error, error) {
			return s.lists.ResolveRepoIDs(ctx, items)
		},
	})

	for ref, err := range results.Failed {
		logger.Warn("could not resolve %s: %v", ref.FullName(), err)
	}
	return results.OK, results.Failed
}

// ensureLists creates a remote list for every category that has resolvable
// pending repos and no recorded id. Create failures are per-category, not
// fatal to the pass.
func (s *Syncer) ensureLists(
	ctx context.Context,
	organized domain.OrganizedStars,
	state *domain.SyncState,
	pending []pendingRepo,
	nodeIDs map[domain.RepoRef]string,
) (int, map[string]error, error) {
	needed := make(map[string]struct{})
	for _, p := range pending {
		if _, resolved := nodeIDs[p.ref]; resolved {
			needed[p.category] = struct{}{}
		}
	}

	names := make([]string, 0, len(needed))
	for category := range needed {
		names = append(names, category)
	}
	sort.Strings(names)

	created := 0
	failed := make(map[string]error)
	for _, category := range names {
		if _, known := state.ListID(category); known {
			continue
		}
		if ctx.Err() != nil {
			return created, failed, ctx.Err()
		}

		description := ""
		if bucket := organized[category]; bucket != nil {
			description = bucket.Description
		}
		id, err := s.createList(ctx, domain.DisplayName(category), description)
		if err != nil {
			if ctx.Err() != nil {
				return created, failed, fmt.Errorf("create list for %s: %w", category, err)
			}
			logger.Warn("could not create list for %s: %v", category, err)
			failed[category] = err
			continue
		}
		state.SetListID(category, id)
		logger.Debug("created list %q (%s)", domain.DisplayName(category), id)
		created++
	}
	return created, failed, nil
}

// createList retries throttled create attempts until the call lands or the
// context ends. Pacing lives in the client's limiter, which the throttle
// signal has already widened; the loop just re-enters the paced call.
func (s *Syncer) createList(ctx context.Context, name, description string) (string, error) {
	for {
		id, err := s.lists.CreateList(ctx, name, description)
		if err == nil || !domain.IsThrottled(err) {
			return id, err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Debug("throttled creating list %q, retrying", name)
	}
}

// deleteList retries throttled delete attempts, same contract as createList.
func (s *Syncer) deleteList(ctx context.Context, list driven.RemoteList) error {
	for {
		err := s.lists.DeleteList(ctx, list.ID)
		if err == nil || !domain.IsThrottled(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Debug("throttled deleting list %q, retrying", list.Name)
	}
}

// attach runs the attach mutations through the pool, checkpointing the sync
// state as acknowledgements land.
func (s *Syncer) attach(ctx context.Context, items []attachItem, state *domain.SyncState, statePath string) (int, map[string]error) {
	if len(items) == 0 {
		return 0, nil
	}

	results := batch.Run(ctx, batch.Job[attachItem, string, string]{
		Items:           items,
		Workers:         s.cfg.Workers,
		BatchSize:       s.cfg.AttachBatchSize,
		CheckpointEvery: s.cfg.SaveEvery,
		Key:             func(item attachItem) string { return item.url },
		Work: func(ctx context.Context, group []attachItem) (map[string]string, map[string]error, error) {
			ok := make(map[string]string, len(group))
			failed := make(map[string]error)

			// A batch can straddle list boundaries; attach per list. The
			// mutation is idempotent, so a batch-level failure after a
			// partial success only costs a redundant retry.
			for listID, members := range groupByList(group) {
				nodeIDs := make([]string, len(members))
				byNode := make(map[string]attachItem, len(members))
				for i, item := range members {
					nodeIDs[i] = item.nodeID
					byNode[item.nodeID] = item
				}

				nodeFailed, err := s.lists.AddToList(ctx, listID, nodeIDs)
				if err != nil {
					return nil, nil, err
				}
				for _, item := range members {
					if nodeErr, bad := nodeFailed[item.nodeID]; bad {
						failed[item.url] = nodeErr
						continue
					}
					ok[item.url] = item.category
				}
			}
			return ok, failed, nil
		},
		// Serialized by the pool; state writes never race.
		Checkpoint: func(done map[string]string) error {
			for url, category := range done {
				state.MarkSynced(url, category)
			}
			return s.store.SaveSyncState(ctx, statePath, state)
		},
	})

	for url, err := range results.Failed {
		logger.Warn("could not attach %s: %v", url, err)
	}
	return len(results.OK), results.Failed
}

// groupByList splits a mixed batch by target list.
func groupByList(items []attachItem) map[string][]attachItem {
	groups := make(map[string][]attachItem)
	for _, item := range items {
		groups[item.listID] = append(groups[item.listID], item)
	}
	return groups
}
