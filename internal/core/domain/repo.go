package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// githubURLPattern extracts owner and name from any github.com URL form.
var githubURLPattern = regexp.MustCompile(`(?i)github\.com[:/]+([^/]+)/([^/?#]+)`)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// URL returns the canonical https URL for the repository.
func (r RepoRef) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s", r.Owner, r.Name)
}

// StarredRepo is a repository record as fetched from the star listing.
// Immutable once fetched within a run.
type StarredRepo struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	FullName  string    `json:"full_name"`
	URL       string    `json:"url"`
	Desc      string    `json:"description"`
	Topics    []string  `json:"topics"`
	Language  string    `json:"language"`
	StarredAt time.Time `json:"starred_at"`
}

// Ref returns the owner/name reference for the repo.
func (s StarredRepo) Ref() RepoRef {
	return RepoRef{Owner: s.Owner, Name: s.Name}
}

// RepoMetadata is the enriched record fed to the classifier.
type RepoMetadata struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
	Language    string   `json:"language"`
	Readme      string   `json:"readme"`
}

// CanonicalRepoURL normalises any github.com URL form (ssh, .git suffix,
// query strings) to https://github.com/owner/name. Non-GitHub URLs are
// returned trimmed but otherwise untouched. Only a trailing .git is
// stripped; repos like owner/.github keep their names.
func CanonicalRepoURL(url string) string {
	s := strings.TrimSpace(url)
	if s == "" {
		return ""
	}
	m := githubURLPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return fmt.Sprintf("https://github.com/%s/%s", m[1], strings.TrimSuffix(m[2], ".git"))
}

// ParseRepoURL extracts the owner/name reference from a repository URL.
// Returns false if the URL does not point at a GitHub repository.
func ParseRepoURL(url string) (RepoRef, bool) {
	m := githubURLPattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return RepoRef{}, false
	}
	return RepoRef{Owner: m[1], Name: strings.TrimSuffix(m[2], ".git")}, true
}
