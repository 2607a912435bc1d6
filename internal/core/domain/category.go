package domain

import (
	"strings"
	"unicode"
)

// DefaultMaxCategories is the category cap, matching the remote list limit.
const DefaultMaxCategories = 32

// Category is a named bucket in the taxonomy.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Assignment is the classifier's answer for a single repository.
type Assignment struct {
	Category        string `json:"name"`
	RepoDescription string `json:"repo_description"`
	Reasoning       string `json:"reasoning"`
}

// CategorizedRepo is a repository entry inside a category.
type CategorizedRepo struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Reasoning   string `json:"reasoning,omitempty"`
}

// CategoryBucket is one category's persisted slot: its description and the
// repositories assigned to it, in assignment order.
type CategoryBucket struct {
	Description string            `json:"description"`
	Repos       []CategorizedRepo `json:"repos"`
}

// OrganizedStars is the durable mapping from category name to assigned
// repositories. It is the output artifact of categorization and the input of
// sync. Each repository URL appears in at most one category.
type OrganizedStars map[string]*CategoryBucket

// NewOrganizedStars builds an empty mapping holding the given taxonomy.
func NewOrganizedStars(categories []Category) OrganizedStars {
	organized := make(OrganizedStars, len(categories))
	for _, c := range categories {
		organized[c.Name] = &CategoryBucket{Description: c.Description, Repos: []CategorizedRepo{}}
	}
	return organized
}

// Categories returns the taxonomy held by the mapping.
func (o OrganizedStars) Categories() []Category {
	out := make([]Category, 0, len(o))
	for name, bucket := range o {
		out = append(out, Category{Name: name, Description: bucket.Description})
	}
	return out
}

// RepoURLs returns the canonical URLs of every assigned repository.
func (o OrganizedStars) RepoURLs() map[string]struct{} {
	urls := make(map[string]struct{})
	for _, bucket := range o {
		for _, repo := range bucket.Repos {
			if u := CanonicalRepoURL(repo.URL); u != "" {
				urls[u] = struct{}{}
			}
		}
	}
	return urls
}

// Add appends a repository to a category. Returns false if the category is
// not part of the taxonomy; callers treat that as a validation failure.
func (o OrganizedStars) Add(category string, repo CategorizedRepo) bool {
	bucket, ok := o[category]
	if !ok {
		return false
	}
	bucket.Repos = append(bucket.Repos, repo)
	return true
}

// TotalRepos counts every assigned repository across all categories.
func (o OrganizedStars) TotalRepos() int {
	n := 0
	for _, bucket := range o {
		n += len(bucket.Repos)
	}
	return n
}

// SanitizeCategoryName normalises a category name to the canonical
// UPPERCASE_WITH_UNDERSCORES form: trimmed, spaces and dashes folded to
// underscores, anything outside [A-Z0-9_] dropped.
func SanitizeCategoryName(raw string) string {
	clean := strings.ToUpper(strings.TrimSpace(raw))
	clean = strings.ReplaceAll(clean, " ", "_")
	clean = strings.ReplaceAll(clean, "-", "_")
	var b strings.Builder
	for _, r := range clean {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DisplayName converts a category name into the human form used for remote
// lists: SOME_CATEGORY -> "Some Category".
func DisplayName(category string) string {
	words := strings.Split(strings.ReplaceAll(category, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
