package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/starorg-cli/internal/batch"
	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driving"
	"github.com/custodia-labs/starorg-cli/internal/logger"
)

// DefaultReadmeWorkers bounds concurrent readme fetches during the metadata
// phase.
const DefaultReadmeWorkers = 10

// Ensure Pipeline implements the driving port.
var _ driving.Organizer = (*Pipeline)(nil)

// Pipeline orchestrates the phases: fetch, metadata, categorize, sync. Each
// phase persists its output before the next starts, so a failure later never
// corrupts what an earlier phase already wrote.
type Pipeline struct {
	source      driven.StarSource
	store       driven.StateStore
	categorizer *Categorizer
	syncer      *Syncer
}

// NewPipeline wires the orchestrator. categorizer may be nil when no
// classifier is configured; sync-only runs still work.
func NewPipeline(source driven.StarSource, store driven.StateStore, categorizer *Categorizer, syncer *Syncer) *Pipeline {
	return &Pipeline{
		source:      source,
		store:       store,
		categorizer: categorizer,
		syncer:      syncer,
	}
}

// Run executes one pipeline pass according to opts.
func (p *Pipeline) Run(ctx context.Context, opts driving.RunOptions) (*driving.RunSummary, error) {
	if opts.OrganizeOnly && opts.SyncOnly {
		return nil, fmt.Errorf("organize-only and sync-only are mutually exclusive: %w", domain.ErrValidation)
	}
	if opts.OutputPath == "" || opts.StatePath == "" {
		return nil, fmt.Errorf("output and state paths are required: %w", domain.ErrValidation)
	}

	summary := &driving.RunSummary{
		RunID:            uuid.NewString(),
		SyncedByCategory: make(map[string]int),
		ErrorTypes:       make(map[string]int),
	}
	logger.Section("Run %s", summary.RunID)

	if opts.SyncOnly {
		organized, err := p.store.LoadOrganized(ctx, opts.OutputPath)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("nothing to sync, run organize first: %w", err)
			}
			return nil, err
		}
		summary.Categories = len(organized)
		if err := p.runSync(ctx, opts, organized, summary); err != nil {
			return nil, err
		}
		return summary, nil
	}

	if p.categorizer == nil {
		return nil, fmt.Errorf("cannot categorize: %w", domain.ErrClassifierUnavailable)
	}
	if err := p.source.Validate(ctx); err != nil {
		return nil, fmt.Errorf("github credentials: %w", err)
	}
	if err := p.categorizer.Ping(ctx); err != nil {
		return nil, fmt.Errorf("classifier unreachable: %w", err)
	}

	// Fetch and prior-state load overlap; neither needs the other.
	type fetched struct {
		stars []domain.StarredRepo
		err   error
	}
	fetchDone := make(chan fetched, 1)
	go func() {
		stars, err := p.source.ListStarred(ctx, opts.TestLimit)
		fetchDone <- fetched{stars: stars, err: err}
	}()

	prior, err := p.store.LoadOrganized(ctx, opts.OutputPath)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	fetch := <-fetchDone
	if fetch.err != nil {
		return nil, fmt.Errorf("fetch starred repositories: %w", fetch.err)
	}
	summary.Starred = len(fetch.stars)
	logger.Info("Fetched %d starred repositories", len(fetch.stars))

	if opts.Reset && prior != nil {
		if opts.Backup {
			backupPath, err := p.store.Backup(ctx, opts.OutputPath)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("backup before reset: %w", err)
			}
			summary.BackupPath = backupPath
			logger.Info("Backed up organized mapping to %s", backupPath)
		}
		prior = nil
	}

	corpus := p.enrich(ctx, fetch.stars, prior)

	organized := prior
	if len(organized) == 0 {
		categories, err := p.categorizer.BuildTaxonomy(ctx, corpus)
		if err != nil {
			return nil, fmt.Errorf("build taxonomy: %w", err)
		}
		organized = domain.NewOrganizedStars(categories)
	}
	summary.Categories = len(organized)

	outcome, err := p.categorizer.Assign(ctx, corpus, organized, opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("categorize: %w", err)
	}
	summary.Categorized = driving.PhaseCounts{
		Succeeded: outcome.Succeeded,
		Failed:    outcome.Failed,
		Skipped:   outcome.Skipped,
	}
	countErrorTypes(summary.ErrorTypes, outcome.Errors)

	// Assign only saves when something completed; persist the mapping even
	// for a run with nothing new so the taxonomy survives.
	if err := p.store.SaveOrganized(ctx, opts.OutputPath, organized); err != nil {
		return nil, fmt.Errorf("persist organized mapping: %w", err)
	}

	if opts.OrganizeOnly {
		return summary, nil
	}

	if err := p.runSync(ctx, opts, organized, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// runSync loads (or resets) the sync state and runs one reconciliation pass.
func (p *Pipeline) runSync(ctx context.Context, opts driving.RunOptions, organized domain.OrganizedStars, summary *driving.RunSummary) error {
	state, err := p.store.LoadSyncState(ctx, opts.StatePath)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		state = domain.NewSyncState()
	}
	if opts.Reset {
		state = domain.NewSyncState()
	}

	out, err := p.syncer.Sync(ctx, organized, state, opts.StatePath, opts.Reset)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	summary.Synced = driving.PhaseCounts{
		Succeeded: out.Attached,
		Failed:    out.Failed,
		Skipped:   out.Skipped,
	}
	for category, n := range out.ByCategory {
		summary.SyncedByCategory[category] = n
	}
	countErrorTypes(summary.ErrorTypes, out.Errors)
	return nil
}

// enrich builds classifier metadata for every starred repo, fetching readme
// excerpts only for repos that still need categorizing. Readme failures are
// tolerated; classification falls back to description and topics.
func (p *Pipeline) enrich(ctx context.Context, stars []domain.StarredRepo, prior domain.OrganizedStars) []domain.RepoMetadata {
	var assigned map[string]struct{}
	if prior != nil {
		assigned = prior.RepoURLs()
	}

	corpus := make([]domain.RepoMetadata, len(stars))
	var needReadme []int
	for i, star := range stars {
		corpus[i] = domain.RepoMetadata{
			URL:         domain.CanonicalRepoURL(star.URL),
			Name:        star.Name,
			FullName:    star.FullName,
			Description: star.Desc,
			Topics:      star.Topics,
			Language:    star.Language,
		}
		if _, done := assigned[corpus[i].URL]; !done {
			needReadme = append(needReadme, i)
		}
	}

	if len(needReadme) == 0 {
		return corpus
	}
	logger.Info("Fetching readmes for %d repositories", len(needReadme))

	results := batch.Run(ctx, batch.Job[int, int, string]{
		Items:   needReadme,
		Workers: DefaultReadmeWorkers,
		Key:     func(i int) int { return i },
		Work: func(ctx context.Context, items []int) (map[int]string, map[int]error, error) {
			i := items[0]
			readme, err := p.source.FetchReadme(ctx, corpus[i].FullName)
			if err != nil {
				return nil, nil, err
			}
			return map[int]string{i: readme}, nil, nil
		},
	})

	for i, readme := range results.OK {
		corpus[i].Readme = readme
	}
	for i, err := range results.Failed {
		logger.Debug("no readme for %s: %v", corpus[i].FullName, err)
	}
	return corpus
}

// countErrorTypes folds per-item failures into the summary histogram.
func countErrorTypes(histogram map[string]int, errs map[string]error) {
	for _, err := range errs {
		histogram[errorTypeName(err)]++
	}
}

// errorTypeName buckets an error by its domain classification.
func errorTypeName(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case domain.IsThrottled(err):
		return "throttled"
	case domain.IsSplittable(err):
		return "batch_too_large"
	case domain.IsTransient(err):
		return "transient"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAuthInvalid):
		return "auth"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
