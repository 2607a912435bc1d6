package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeCategoryName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"python linters", "PYTHON_LINTERS"},
		{"  AI-Agents-Frameworks ", "AI_AGENTS_FRAMEWORKS"},
		{"WEB_FRAMEWORKS", "WEB_FRAMEWORKS"},
		{"weird!@#chars", "WEIRDCHARS"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeCategoryName(tt.in))
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Python Linters", DisplayName("PYTHON_LINTERS"))
	assert.Equal(t, "Ai Image Generation", DisplayName("AI_IMAGE_GENERATION"))
}

func TestOrganizedStars_AddAndURLs(t *testing.T) {
	t.Parallel()

	organized := NewOrganizedStars([]Category{
		{Name: "PYTHON_LINTERS", Description: "Linters for Python"},
		{Name: "WEB_FRAMEWORKS", Description: "Web frameworks"},
	})

	ok := organized.Add("PYTHON_LINTERS", CategorizedRepo{URL: "https://github.com/astral-sh/ruff"})
	require.True(t, ok)

	// Unknown category is rejected, not silently bucketed.
	ok = organized.Add("UNKNOWN_CATEGORY", CategorizedRepo{URL: "https://github.com/x/y"})
	assert.False(t, ok)

	urls := organized.RepoURLs()
	assert.Len(t, urls, 1)
	_, found := urls["https://github.com/astral-sh/ruff"]
	assert.True(t, found)
	assert.Equal(t, 1, organized.TotalRepos())
}

func TestSyncState_MarkAndLookup(t *testing.T) {
	t.Parallel()

	state := NewSyncState()
	assert.False(t, state.IsSynced("https://github.com/owner/repo"))

	state.MarkSynced("https://github.com/owner/repo.git", "DEV_TOOLS")
	assert.True(t, state.IsSynced("https://github.com/owner/repo"))
	assert.Equal(t, 1, state.SyncedCount())

	state.SetListID("DEV_TOOLS", "L_123")
	id, ok := state.ListID("DEV_TOOLS")
	require.True(t, ok)
	assert.Equal(t, "L_123", id)

	_, ok = state.ListID("MISSING")
	assert.False(t, ok)
}
