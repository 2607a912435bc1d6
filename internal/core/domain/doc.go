// Package domain contains the core business entities for organising starred
// repositories: starred-repo metadata, the category taxonomy, the organized
// mapping persisted between runs, and the sync state tracking which repos
// have been attached to which remote lists.
package domain
