package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// StarsPerPage is the page size for the star listing.
	StarsPerPage = 100

	// ReadmeExcerptLimit caps how much readme text is kept per repository.
	// The classifier only needs the opening; full readmes blow up token cost.
	ReadmeExcerptLimit = 2000
)

// Client reads the authenticated user's starred repositories over the GitHub
// REST API. It implements driven.StarSource.
type Client struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
}

// compile-time interface check
var _ driven.StarSource = (*Client)(nil)

// NewClient creates a GitHub REST client with a static access token.
func NewClient(ctx context.Context, token string) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout

	return &Client{
		gh:          gh.NewClient(tc),
		rateLimiter: NewRateLimiter(),
	}
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// ListStarred returns all starred repositories, newest star first. A positive
// limit caps the fetch for test runs.
func (c *Client) ListStarred(ctx context.Context, limit int) ([]domain.StarredRepo, error) {
	var starred []domain.StarredRepo

	opts := &gh.ActivityListStarredOptions{
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: StarsPerPage},
	}

	for {
		select {
		case <-ctx.Done():
			return starred, ctx.Err()
		default:
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		page, resp, err := c.gh.Activity.ListStarred(ctx, "", opts)
		if err != nil {
			return nil, c.wrapError(err, "list starred")
		}
		c.updateRateLimitFromResponse(resp)

		for _, sr := range page {
			starred = append(starred, starredFromAPI(sr))
			if limit > 0 && len(starred) >= limit {
				return starred, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return starred, nil
}

// FetchReadme returns a trimmed readme excerpt for owner/name, or an empty
// string when the repository has no readme.
func (c *Client) FetchReadme(ctx context.Context, fullName string) (string, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return "", err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	content, resp, err := c.gh.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		wrapped := c.wrapError(err, "get readme")
		if IsNotFound(wrapped) {
			return "", nil
		}
		return "", wrapped
	}
	c.updateRateLimitFromResponse(resp)

	text, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode readme: %w", err)
	}
	return truncateExcerpt(text, ReadmeExcerptLimit), nil
}

// truncateExcerpt shortens text to at most limit bytes without splitting a
// UTF-8 sequence.
func truncateExcerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// CheckAlive probes whether the repository still exists upstream. Gone means
// dead; throttling and transient failures are uncertain, never dead.
func (c *Client) CheckAlive(ctx context.Context, fullName string) (driven.Liveness, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return driven.LivenessUncertain, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return driven.LivenessUncertain, fmt.Errorf("rate limit wait: %w", err)
	}

	_, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		wrapped := c.wrapError(err, "check alive")
		switch {
		case IsNotFound(wrapped):
			return driven.LivenessDead, nil
		case IsRateLimited(wrapped), domain.IsTransient(wrapped):
			return driven.LivenessUncertain, wrapped
		default:
			return driven.LivenessUncertain, wrapped
		}
	}
	c.updateRateLimitFromResponse(resp)

	return driven.LivenessAlive, nil
}

// Validate checks the token by fetching the authenticated user.
func (c *Client) Validate(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return c.wrapError(err, "validate credentials")
	}
	c.updateRateLimitFromResponse(resp)
	return nil
}

// starredFromAPI maps one star listing entry onto the domain record.
func starredFromAPI(sr *gh.StarredRepository) domain.StarredRepo {
	repo := sr.GetRepository()
	return domain.StarredRepo{
		ID:        repo.GetID(),
		Owner:     repo.GetOwner().GetLogin(),
		Name:      repo.GetName(),
		FullName:  repo.GetFullName(),
		URL:       repo.GetHTMLURL(),
		Desc:      repo.GetDescription(),
		Topics:    repo.Topics,
		Language:  repo.GetLanguage(),
		StarredAt: sr.GetStarredAt().Time,
	}
}

// splitFullName parses "owner/name".
func splitFullName(fullName string) (owner, name string, err error) {
	owner, name, found := strings.Cut(fullName, "/")
	if !found || owner == "" || name == "" {
		return "", "", fmt.Errorf("malformed repository name %q: %w", fullName, domain.ErrValidation)
	}
	return owner, name, nil
}

// updateRateLimitFromResponse updates the rate limiter from response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to our error types.
func (c *Client) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{
			ResetAt:   c.rateLimiter.ResetTime(),
			Remaining: c.rateLimiter.Remaining(),
			Limit:     c.rateLimiter.Limit(),
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		resetAt := time.Now()
		if abuseErr.RetryAfter != nil {
			resetAt = resetAt.Add(*abuseErr.RetryAfter)
		}
		return &RateLimitError{
			ResetAt:   resetAt,
			Remaining: c.rateLimiter.Remaining(),
			Limit:     c.rateLimiter.Limit(),
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil && ghErr.Response.Request.URL != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}

	// Anything else at this layer is a network-level failure.
	return fmt.Errorf("%s: %w: %v", operation, domain.ErrTransient, err)
}
