// Package openai provides a classification service adapter using the OpenAI
// chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
	"github.com/custodia-labs/starorg-cli/internal/ratelimit"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second

	// taxonomyMaxTokens bounds the taxonomy response; 32 categories with
	// descriptions fit comfortably.
	taxonomyMaxTokens = 2000

	// assignMaxTokens bounds a single assignment response.
	assignMaxTokens = 400
)

// Config holds configuration for the OpenAI classifier.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// Limiter paces every completion call. Shared by all assignment
	// workers; a fresh one is constructed when nil.
	Limiter *ratelimit.Limiter
}

// Classifier assigns repositories to categories using OpenAI chat
// completions with JSON-mode responses.
type Classifier struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *ratelimit.Limiter
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatCompletionMsg `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat *responseFormat     `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatCompletionMsg is the OpenAI chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// New creates a new OpenAI classifier.
func New(cfg Config) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required: %w", domain.ErrClassifierUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(ratelimit.Config{})
	}

	return &Classifier{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		limiter: cfg.Limiter,
	}, nil
}

// CreateCategories analyses the whole corpus and proposes want named
// categories. The response is returned as-is; cardinality enforcement is the
// caller's job.
func (c *Classifier) CreateCategories(ctx context.Context, corpus []domain.RepoMetadata, want int) ([]domain.Category, error) {
	prompt := buildTaxonomyPrompt(corpus, want)

	content, err := c.chatCompletion(ctx, prompt, taxonomyMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("create categories: %w", err)
	}

	var parsed struct {
		Categories []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"categories"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("create categories: malformed response: %w: %v", domain.ErrTransient, err)
	}

	categories := make([]domain.Category, 0, len(parsed.Categories))
	for _, pc := range parsed.Categories {
		name := domain.SanitizeCategoryName(pc.Name)
		if name == "" {
			continue
		}
		categories = append(categories, domain.Category{
			Name:        name,
			Description: strings.TrimSpace(pc.Description),
		})
	}
	return categories, nil
}

// AssignCategory picks one category from the fixed taxonomy for a single
// repository. The returned name is not validated against the taxonomy here.
func (c *Classifier) AssignCategory(ctx context.Context, meta domain.RepoMetadata, categories []domain.Category) (domain.Assignment, error) {
	prompt := buildAssignmentPrompt(meta, categories)

	content, err := c.chatCompletion(ctx, prompt, assignMaxTokens)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("assign category: %w", err)
	}

	var parsed struct {
		Category    string `json:"category"`
		Description string `json:"description"`
		Reasoning   string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &parsed); err != nil {
		return domain.Assignment{}, fmt.Errorf("assign category: malformed response: %w: %v", domain.ErrTransient, err)
	}

	return domain.Assignment{
		Category:        strings.TrimSpace(parsed.Category),
		RepoDescription: strings.TrimSpace(parsed.Description),
		Reasoning:       strings.TrimSpace(parsed.Reasoning),
	}, nil
}

// chatCompletion runs one paced JSON-mode completion and feeds the outcome
// back to the adaptive limiter, so a sustained 429 widens the gap between
// calls for every worker at once.
func (c *Classifier) chatCompletion(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	content, err := c.completeOnce(ctx, prompt, maxTokens)
	switch {
	case err == nil:
		c.limiter.Report(ratelimit.OK)
	case domain.IsThrottled(err):
		c.limiter.Report(ratelimit.Throttled)
	default:
		c.limiter.Report(ratelimit.Failed)
	}
	return content, err
}

// completeOnce issues a single unpaced completion round trip.
func (c *Classifier) completeOnce(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatCompletionMsg{
			{Role: "user", Content: prompt},
		},
		MaxTokens:      maxTokens,
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w: %v", domain.ErrTransient, err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w: %v", domain.ErrTransient, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned: %w", domain.ErrTransient)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// classifyStatus maps HTTP-level failures onto the domain taxonomy.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("openai: rate limited: %w", domain.ErrThrottled)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("openai: invalid API key: %w", domain.ErrAuthInvalid)
	case status == http.StatusBadRequest && bytes.Contains(body, []byte("context_length")):
		return fmt.Errorf("openai: prompt too large: %w", domain.ErrBatchTooLarge)
	case status >= 500:
		return fmt.Errorf("openai: server error (status %d): %w", status, domain.ErrTransient)
	default:
		return fmt.Errorf("openai error (status %d): %s", status, string(body))
	}
}

// stripFences removes a markdown code fence wrapper if the model added one
// despite JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ModelName returns the name of the model being used.
func (c *Classifier) ModelName() string {
	return c.model
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (c *Classifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("openai: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (c *Classifier) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
