package openai

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

// Per-repo bounds for the taxonomy prompt. The corpus digest covers hundreds
// of repositories, so each line has to stay short.
const (
	digestDescLimit   = 200
	digestReadmeLimit = 300
	digestTopicsLimit = 6
)

// buildTaxonomyPrompt renders the whole corpus into one prompt asking for
// exactly want categories.
func buildTaxonomyPrompt(corpus []domain.RepoMetadata, want int) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are organizing a developer's starred GitHub repositories into topical categories.

Analyze the repositories below and produce EXACTLY %d categories that together cover all of them.

Rules:
- Category names must be UPPERCASE_SNAKE_CASE, short, and specific (e.g. MACHINE_LEARNING, WEB_FRAMEWORKS, DEVOPS_TOOLING).
- Each category needs a one-sentence description of what belongs in it.
- Categories must be distinct; do not create overlapping or catch-all buckets.
- Return EXACTLY %d categories, no more, no fewer.

Respond with JSON only, in this shape:
{"categories": [{"name": "CATEGORY_NAME", "description": "what belongs here"}]}

Repositories:
`, want, want)

	for _, meta := range corpus {
		writeRepoDigest(&b, meta)
	}

	return b.String()
}

// buildAssignmentPrompt asks for exactly one category from the fixed
// taxonomy for a single repository.
func buildAssignmentPrompt(meta domain.RepoMetadata, categories []domain.Category) string {
	var b strings.Builder

	b.WriteString(`You are filing one GitHub repository into a fixed set of categories.

Pick EXACTLY ONE category from the list below. Use only a name from the list, spelled exactly as given.

Categories:
`)
	for _, cat := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", cat.Name, cat.Description)
	}

	b.WriteString(`
Respond with JSON only, in this shape:
{"category": "CATEGORY_NAME", "description": "one-sentence summary of the repository", "reasoning": "why this category"}

Repository:
`)
	writeRepoDigest(&b, meta)

	return b.String()
}

// writeRepoDigest appends one bounded repository record.
func writeRepoDigest(b *strings.Builder, meta domain.RepoMetadata) {
	fmt.Fprintf(b, "\n- %s (%s)\n", meta.FullName, meta.URL)
	if meta.Language != "" {
		fmt.Fprintf(b, "  language: %s\n", meta.Language)
	}
	if len(meta.Topics) > 0 {
		topics := meta.Topics
		if len(topics) > digestTopicsLimit {
			topics = topics[:digestTopicsLimit]
		}
		fmt.Fprintf(b, "  topics: %s\n", strings.Join(topics, ", "))
	}
	if desc := truncate(meta.Description, digestDescLimit); desc != "" {
		fmt.Fprintf(b, "  description: %s\n", desc)
	}
	if readme := truncate(flatten(meta.Readme), digestReadmeLimit); readme != "" {
		fmt.Fprintf(b, "  readme: %s\n", readme)
	}
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// flatten collapses newlines so a readme excerpt stays on one digest line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
