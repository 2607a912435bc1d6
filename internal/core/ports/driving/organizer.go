package driving

import "context"

// RunOptions selects which pipeline phases execute and how.
type RunOptions struct {
	// Reset forces full re-categorization and deletes remote lists not in
	// the new mapping before re-syncing.
	Reset bool

	// OrganizeOnly stops after categorization is persisted; no remote
	// mutations are issued.
	OrganizeOnly bool

	// SyncOnly skips fetch/metadata/categorize and syncs the persisted
	// mapping directly.
	SyncOnly bool

	// Backup copies the organized file aside before a reset run.
	Backup bool

	// TestLimit caps the number of starred repos fetched when > 0.
	TestLimit int

	// OutputPath overrides the organized-stars file location.
	OutputPath string

	// StatePath overrides the sync-state file location.
	StatePath string
}

// PhaseCounts is the succeeded/failed tally for one pipeline phase.
type PhaseCounts struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// RunSummary is the end-of-run report. Partial item failures do not fail a
// run; they are tallied here.
type RunSummary struct {
	RunID       string
	Starred     int
	Categories  int
	Categorized PhaseCounts
	Synced      PhaseCounts

	// SyncedByCategory counts acknowledged attaches per category.
	SyncedByCategory map[string]int

	// ErrorTypes histograms terminal item errors by classification.
	ErrorTypes map[string]int

	// BackupPath is set when a pre-reset backup was written.
	BackupPath string
}

// Organizer runs the star organization pipeline.
type Organizer interface {
	Run(ctx context.Context, opts RunOptions) (*RunSummary, error)
}
