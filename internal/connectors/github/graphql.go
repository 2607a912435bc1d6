package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
)

// GraphQLEndpoint is the GitHub GraphQL API endpoint. The Lists feature has
// no REST surface, so every list operation goes through here.
const GraphQLEndpoint = "https://api.github.com/graphql"

// graphQLRequest is the wire format for a GraphQL POST.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLError is one entry of the response "errors" array.
type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

// alias returns the top-level response alias the error is attached to, or ""
// for a request-level error.
func (e graphQLError) alias() string {
	if len(e.Path) == 0 {
		return ""
	}
	s, _ := e.Path[0].(string)
	return s
}

// graphQLResponse is the wire format of a GraphQL reply.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// graphQLClient is a minimal GraphQL transport over an oauth2 http client.
type graphQLClient struct {
	httpClient *http.Client
	endpoint   string
	limiter    *RateLimiter
}

// newGraphQLClient builds a transport authenticated with a static token.
func newGraphQLClient(ctx context.Context, token string) *graphQLClient {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout

	return &graphQLClient{
		httpClient: tc,
		endpoint:   GraphQLEndpoint,
		limiter:    NewRateLimiter(),
	}
}

// do posts one GraphQL document and decodes data into out when out is
// non-nil. The returned error slice carries per-alias failures; the error
// return covers request-level failures, already classified into the domain
// taxonomy.
func (g *graphQLClient) do(ctx context.Context, query string, variables map[string]any, out any) ([]graphQLError, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w: %v", domain.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := g.limiter.CheckRateLimit(resp); err != nil {
		return nil, err
	}
	if err := checkGraphQLStatus(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w: %v", domain.ErrTransient, err)
	}

	var reply graphQLResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}

	// A request-level error has no path; it fails the whole call.
	for _, gqlErr := range reply.Errors {
		if gqlErr.alias() == "" {
			return reply.Errors, classifyGraphQLMessage(gqlErr.Message)
		}
	}

	if out != nil && len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, out); err != nil {
			return reply.Errors, fmt.Errorf("decode graphql data: %w", err)
		}
	}

	return reply.Errors, nil
}

// checkGraphQLStatus classifies non-200 responses.
func checkGraphQLStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{ResetAt: time.Now().Add(time.Minute)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
		if resp.Request != nil && resp.Request.URL != nil {
			apiErr.URL = resp.Request.URL.String()
		}
		return apiErr
	}
}
