package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/ratelimit"
)

func newTestClassifier(t *testing.T, handler http.HandlerFunc) *Classifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Limiter: ratelimit.New(ratelimit.Config{Interval: time.Millisecond}),
	})
	require.NoError(t, err)
	return c
}

// chatReply wraps content into the completions response envelope.
func chatReply(content string) string {
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
	}
	raw, _ := json.Marshal(reply)
	return string(raw)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)
}

func TestCreateCategories_ParsesAndSanitizes(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "EXACTLY 2 categories")
		assert.Contains(t, string(body), "alice/mltool")

		_, _ = fmt.Fprint(w, chatReply(`{"categories": [
			{"name": "machine learning", "description": "ML frameworks"},
			{"name": "WEB_FRAMEWORKS", "description": "web servers and frameworks"}
		]}`))
	})

	corpus := []domain.RepoMetadata{
		{FullName: "alice/mltool", URL: "https://github.com/alice/mltool", Language: "Python"},
		{FullName: "bob/webthing", URL: "https://github.com/bob/webthing"},
	}
	categories, err := c.CreateCategories(context.Background(), corpus, 2)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "MACHINE_LEARNING", categories[0].Name)
	assert.Equal(t, "WEB_FRAMEWORKS", categories[1].Name)
}

func TestCreateCategories_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, chatReply("```json\n{\"categories\": [{\"name\": \"DATABASES\", \"description\": \"storage\"}]}\n```"))
	})

	categories, err := c.CreateCategories(context.Background(), nil, 1)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "DATABASES", categories[0].Name)
}

func TestAssignCategory_ReturnsAssignmentUnvalidated(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "DATABASES: storage engines")

		_, _ = fmt.Fprint(w, chatReply(`{"category": "NOT_IN_TAXONOMY", "description": "a key-value store", "reasoning": "it stores data"}`))
	})

	got, err := c.AssignCategory(context.Background(),
		domain.RepoMetadata{FullName: "x/kv", URL: "https://github.com/x/kv"},
		[]domain.Category{{Name: "DATABASES", Description: "storage engines"}},
	)
	require.NoError(t, err)
	// Taxonomy membership is checked by the caller, not the adapter.
	assert.Equal(t, "NOT_IN_TAXONOMY", got.Category)
	assert.Equal(t, "it stores data", got.Reasoning)
}

func TestAssignCategory_MalformedJSONIsTransient(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, chatReply("I think this belongs in DATABASES."))
	})

	_, err := c.AssignCategory(context.Background(), domain.RepoMetadata{}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestChatCompletion_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, domain.IsThrottled},
		{"bad key", http.StatusUnauthorized, `{}`, func(err error) bool {
			return errors.Is(err, domain.ErrAuthInvalid)
		}},
		{"server error", http.StatusBadGateway, `{}`, domain.IsTransient},
		{"oversized prompt", http.StatusBadRequest, `{"error": {"code": "context_length_exceeded"}}`, domain.IsSplittable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClassifier(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			})

			_, err := c.AssignCategory(context.Background(), domain.RepoMetadata{}, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestChatCompletion_ThrottleWidensCallSpacing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	limiter := ratelimit.New(ratelimit.Config{Interval: time.Millisecond})
	c, err := New(Config{APIKey: "test-key", BaseURL: srv.URL, Limiter: limiter})
	require.NoError(t, err)

	before := limiter.Interval()
	_, err = c.AssignCategory(context.Background(), domain.RepoMetadata{}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsThrottled(err))
	assert.Greater(t, limiter.Interval(), before,
		"a 429 must slow down every worker sharing the limiter")
}

func TestChatCompletion_AcquireHonorsCancellation(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Config{Interval: time.Hour})
	c, err := New(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:0", Limiter: limiter})
	require.NoError(t, err)

	// Burn the first slot so the next call has to wait a full interval.
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.AssignCategory(ctx, domain.RepoMetadata{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPing_ChecksModelsEndpoint(t *testing.T) {
	t.Parallel()

	var path string
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = fmt.Fprint(w, `{"data": []}`)
	})

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "/models", path)
}
