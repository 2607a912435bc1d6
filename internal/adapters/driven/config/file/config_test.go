package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultMaxCategories, cfg.Categorize.MaxCategories)
	assert.Equal(t, 50, cfg.Categorize.Workers)
	assert.Equal(t, 40, cfg.Sync.ResolveBatchSize)
	assert.Equal(t, 10, cfg.Sync.AttachBatchSize)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
[openai]
model = "gpt-4.1"

[categorize]
workers = 5

[sync]
attach_batch_size = 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1", cfg.OpenAI.Model)
	assert.Equal(t, 5, cfg.Categorize.Workers)
	assert.Equal(t, 4, cfg.Sync.AttachBatchSize)
	// Untouched sections keep their defaults.
	assert.Equal(t, 40, cfg.Sync.ResolveBatchSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[github]
token = "file-token"

[openai]
api_key = "file-key"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))

	t.Setenv(EnvGitHubToken, "env-token")
	t.Setenv(EnvOpenAIKey, "env-key")

	cfg, err := Load(dir)
	require.NoError(t, err)

	token, err := cfg.RequireGitHubToken()
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)

	key, err := cfg.RequireOpenAIKey()
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)
}

func TestRequireCredentials_Missing(t *testing.T) {
	t.Setenv(EnvGitHubToken, "")
	t.Setenv(EnvOpenAIKey, "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	_, err = cfg.RequireGitHubToken()
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)

	_, err = cfg.RequireOpenAIKey()
	assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)
}
