package driving

import "context"

// DeadRepo is a starred repository that no longer exists upstream.
type DeadRepo struct {
	FullName string
	URL      string

	// Category is the organized bucket referencing the repo, if any.
	Category string
}

// AuditReport summarises a liveness pass over the starred set.
type AuditReport struct {
	Checked   int
	Alive     int
	Dead      []DeadRepo
	Uncertain []string
}

// Auditor probes whether starred repositories still exist. Read-only: it
// never unstars, never mutates lists.
type Auditor interface {
	// Audit probes every starred repository (capped by limit when > 0),
	// annotating dead ones with the category referencing them in the
	// organized mapping at organizedPath.
	Audit(ctx context.Context, organizedPath string, limit int) (*AuditReport, error)
}
