package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/starorg-cli/internal/batch"
	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
	"github.com/custodia-labs/starorg-cli/internal/logger"
)

// Categorization defaults.
const (
	// DefaultTaxonomyAttempts bounds how often the taxonomy request is
	// reissued when the classifier returns the wrong number of categories.
	DefaultTaxonomyAttempts = 5

	// DefaultAssignWorkers bounds concurrent assignment calls.
	DefaultAssignWorkers = 50

	// DefaultAssignSaveEvery checkpoints the organized mapping after this
	// many assignments.
	DefaultAssignSaveEvery = 20
)

// CategorizerConfig tunes the categorization engine.
type CategorizerConfig struct {
	MaxCategories    int
	Workers          int
	SaveEvery        int
	TaxonomyAttempts int
}

// Categorizer builds the taxonomy and assigns repositories to it.
type Categorizer struct {
	classifier driven.Classifier
	store      driven.StateStore
	cfg        CategorizerConfig
}

// NewCategorizer creates a categorization engine. Zero config fields fall
// back to the defaults.
func NewCategorizer(classifier driven.Classifier, store driven.StateStore, cfg CategorizerConfig) *Categorizer {
	if cfg.MaxCategories <= 0 {
		cfg.MaxCategories = domain.DefaultMaxCategories
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultAssignWorkers
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = DefaultAssignSaveEvery
	}
	if cfg.TaxonomyAttempts <= 0 {
		cfg.TaxonomyAttempts = DefaultTaxonomyAttempts
	}
	return &Categorizer{
		classifier: classifier,
		store:      store,
		cfg:        cfg,
	}
}

// Ping checks that the classification service is reachable before a run
// commits to it.
func (c *Categorizer) Ping(ctx context.Context) error {
	return c.classifier.Ping(ctx)
}

// BuildTaxonomy asks the classifier for exactly min(MaxCategories, corpus
// size) categories, reissuing the request when the count comes back wrong.
// An oversized final answer is trimmed; an undersized one after all attempts
// is an error.
func (c *Categorizer) BuildTaxonomy(ctx context.Context, corpus []domain.RepoMetadata) ([]domain.Category, error) {
	if len(corpus) == 0 {
		return nil, nil
	}

	want := c.cfg.MaxCategories
	if len(corpus) < want {
		want = len(corpus)
	}

	var categories []domain.Category
	for attempt := 1; attempt <= c.cfg.TaxonomyAttempts; attempt++ {
		got, err := c.classifier.CreateCategories(ctx, corpus, want)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("taxonomy attempt %d/%d failed: %v", attempt, c.cfg.TaxonomyAttempts, err)
			continue
		}

		categories = dedupeCategories(got)
		logger.Debug("taxonomy attempt %d/%d returned %d categories (want %d)",
			attempt, c.cfg.TaxonomyAttempts, len(categories), want)

		if len(categories) == want {
			return categories, nil
		}
	}

	// The last answer overshooting is recoverable: the front of the list
	// holds the broadest buckets.
	if len(categories) > want {
		logger.Warn("trimming taxonomy from %d to %d categories", len(categories), want)
		return categories[:want], nil
	}

	return nil, fmt.Errorf("taxonomy has %d categories after %d attempts, want %d",
		len(categories), c.cfg.TaxonomyAttempts, want)
}

// assignResult is one successful classification, keyed by canonical URL.
type assignResult struct {
	category string
	repo     domain.CategorizedRepo
}

// AssignOutcome reports the assignment phase.
type AssignOutcome struct {
	Succeeded int
	Failed    int
	Skipped   int

	// Errors holds terminal per-repo failures keyed by canonical URL.
	Errors map[string]error
}

// Assign classifies every repository not yet present in the organized
// mapping, mutating organized in place and checkpointing it to outputPath as
// assignments complete. Already-assigned repos are skipped, so a rerun with
// no new stars issues zero classification calls.
func (c *Categorizer) Assign(
	ctx context.Context,
	corpus []domain.RepoMetadata,
	organized domain.OrganizedStars,
	outputPath string,
) (*AssignOutcome, error) {
	assigned := organized.RepoURLs()
	categories := organized.Categories()

	var pending []domain.RepoMetadata
	skipped := 0
	for _, meta := range corpus {
		if _, done := assigned[domain.CanonicalRepoURL(meta.URL)]; done {
			skipped++
			continue
		}
		pending = append(pending, meta)
	}

	logger.Info("Categorizing %d repositories (%d already assigned)", len(pending), skipped)
	if len(pending) == 0 {
		return &AssignOutcome{Skipped: skipped, Errors: map[string]error{}}, nil
	}

	results := batch.Run(ctx, batch.Job[domain.RepoMetadata, string, assignResult]{
		Items:           pending,
		Workers:         c.cfg.Workers,
		BatchSize:       1,
		CheckpointEvery: c.cfg.SaveEvery,
		Key: func(meta domain.RepoMetadata) string {
			return domain.CanonicalRepoURL(meta.URL)
		},
		Work: func(ctx context.Context, items []domain.RepoMetadata) (map[string]assignResult, map[string]error, error) {
			meta := items[0]
			key := domain.CanonicalRepoURL(meta.URL)

			assignment, err := c.classifier.AssignCategory(ctx, meta, categories)
			if err != nil {
				return nil, nil, err
			}

			name := domain.SanitizeCategoryName(assignment.Category)
			if _, known := organized[name]; !known {
				return nil, map[string]error{
					key: fmt.Errorf("category %q is not in the taxonomy: %w",
						assignment.Category, domain.ErrValidation),
				}, nil
			}

			return map[string]assignResult{key: {
				category: name,
				repo: domain.CategorizedRepo{
					URL:         key,
					Description: assignment.RepoDescription,
					Reasoning:   assignment.Reasoning,
				},
			}}, nil, nil
		},
		// Checkpoint calls are serialized by the pool, so mutating organized
		// and the assigned set here is safe.
		Checkpoint: func(done map[string]assignResult) error {
			for url, res := range done {
				if _, seen := assigned[url]; seen {
					continue
				}
				organized.Add(res.category, res.repo)
				assigned[url] = struct{}{}
			}
			return c.store.SaveOrganized(ctx, outputPath, organized)
		},
	})

	outcome := &AssignOutcome{
		Succeeded: len(results.OK),
		Failed:    len(results.Failed),
		Skipped:   skipped,
		Errors:    results.Failed,
	}
	for url, err := range results.Failed {
		logger.Warn("could not categorize %s: %v", url, err)
	}
	return outcome, nil
}

// dedupeCategories drops duplicate names, keeping first occurrence order.
func dedupeCategories(categories []domain.Category) []domain.Category {
	seen := make(map[string]struct{}, len(categories))
	out := make([]domain.Category, 0, len(categories))
	for _, cat := range categories {
		if _, dup := seen[cat.Name]; dup || cat.Name == "" {
			continue
		}
		seen[cat.Name] = struct{}{}
		out = append(out, cat)
	}
	return out
}
