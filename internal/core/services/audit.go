package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/starorg-cli/internal/batch"
	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driving"
	"github.com/custodia-labs/starorg-cli/internal/logger"
)

// DefaultAuditWorkers bounds concurrent liveness probes.
const DefaultAuditWorkers = 10

// Ensure Auditor implements the driving port.
var _ driving.Auditor = (*Auditor)(nil)

// Auditor probes whether starred repositories still exist upstream.
type Auditor struct {
	source  driven.StarSource
	store   driven.StateStore
	workers int
}

// NewAuditor creates a liveness auditor.
func NewAuditor(source driven.StarSource, store driven.StateStore, workers int) *Auditor {
	if workers <= 0 {
		workers = DefaultAuditWorkers
	}
	return &Auditor{source: source, store: store, workers: workers}
}

// Audit probes every starred repository (capped by limit when > 0) and
// reports the dead ones together with the organized category referencing
// them. A missing organized mapping just means no category annotations.
func (a *Auditor) Audit(ctx context.Context, organizedPath string, limit int) (*driving.AuditReport, error) {
	stars, err := a.source.ListStarred(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch starred repositories: %w", err)
	}
	logger.Section("Auditing %d starred repositories", len(stars))

	categoryOf := make(map[string]string)
	organized, err := a.store.LoadOrganized(ctx, organizedPath)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	for category, bucket := range organized {
		for _, repo := range bucket.Repos {
			categoryOf[domain.CanonicalRepoURL(repo.URL)] = category
		}
	}

	results := batch.Run(ctx, batch.Job[domain.StarredRepo, string, driven.Liveness]{
		Items:   stars,
		Workers: a.workers,
		Key:     func(star domain.StarredRepo) string { return star.FullName },
		Work: func(ctx context.Context, items []domain.StarredRepo) (map[string]driven.Liveness, map[string]error, error) {
			star := items[0]
			liveness, err := a.source.CheckAlive(ctx, star.FullName)
			if err != nil {
				// Inconclusive probes are reported, not retried to death.
				logger.Debug("liveness probe for %s inconclusive: %v", star.FullName, err)
				return map[string]driven.Liveness{star.FullName: driven.LivenessUncertain}, nil, nil
			}
			return map[string]driven.Liveness{star.FullName: liveness}, nil, nil
		},
	})

	report := &driving.AuditReport{Checked: len(stars)}
	for _, star := range stars {
		liveness, found := results.OK[star.FullName]
		if !found {
			report.Uncertain = append(report.Uncertain, star.FullName)
			continue
		}
		switch liveness {
		case driven.LivenessAlive:
			report.Alive++
		case driven.LivenessDead:
			report.Dead = append(report.Dead, driving.DeadRepo{
				FullName: star.FullName,
				URL:      domain.CanonicalRepoURL(star.URL),
				Category: categoryOf[domain.CanonicalRepoURL(star.URL)],
			})
		default:
			report.Uncertain = append(report.Uncertain, star.FullName)
		}
	}

	sort.Slice(report.Dead, func(i, j int) bool { return report.Dead[i].FullName < report.Dead[j].FullName })
	sort.Strings(report.Uncertain)

	logger.Info("Audit complete: %d alive, %d dead, %d uncertain",
		report.Alive, len(report.Dead), len(report.Uncertain))
	return report, nil
}
