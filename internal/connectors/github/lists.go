package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/core/ports/driven"
	"github.com/custodia-labs/starorg-cli/internal/ratelimit"
)

const listsPerPage = 100

// ListsClient drives GitHub Lists over GraphQL. Every call is paced through
// the shared adaptive limiter and reported back to it, so sustained
// throttling widens the gap between calls for all workers at once.
type ListsClient struct {
	gql     *graphQLClient
	limiter *ratelimit.Limiter
}

var _ driven.ListAPI = (*ListsClient)(nil)

// NewListsClient builds a Lists client. The limiter is shared across all
// workers that touch the GraphQL API.
func NewListsClient(ctx context.Context, token string, limiter *ratelimit.Limiter) *ListsClient {
	return &ListsClient{
		gql:     newGraphQLClient(ctx, token),
		limiter: limiter,
	}
}

// call runs one paced GraphQL round trip and feeds the outcome back to the
// adaptive limiter. Batch-too-large is the caller's problem, not the
// limiter's: it is not evidence of throttling.
func (l *ListsClient) call(ctx context.Context, query string, variables map[string]any, out any) ([]graphQLError, error) {
	if err := l.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	gqlErrs, err := l.gql.do(ctx, query, variables, out)
	switch {
	case err == nil:
		l.limiter.Report(ratelimit.OK)
	case domain.IsThrottled(err):
		l.limiter.Report(ratelimit.Throttled)
	default:
		l.limiter.Report(ratelimit.Failed)
	}
	return gqlErrs, err
}

// ListLists returns every list owned by the authenticated user.
func (l *ListsClient) ListLists(ctx context.Context) ([]driven.RemoteList, error) {
	const query = `
		query($first: Int!, $after: String) {
			viewer {
				lists(first: $first, after: $after) {
					nodes { id name description }
					pageInfo { hasNextPage endCursor }
				}
			}
		}`

	var lists []driven.RemoteList
	var cursor *string

	for {
		var data struct {
			Viewer struct {
				Lists struct {
					Nodes []struct {
						ID          string `json:"id"`
						Name        string `json:"name"`
						Description string `json:"description"`
					} `json:"nodes"`
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
				} `json:"lists"`
			} `json:"viewer"`
		}

		vars := map[string]any{"first": listsPerPage}
		if cursor != nil {
			vars["after"] = *cursor
		}

		if _, err := l.call(ctx, query, vars, &data); err != nil {
			return nil, fmt.Errorf("list lists: %w", err)
		}

		for _, node := range data.Viewer.Lists.Nodes {
			lists = append(lists, driven.RemoteList{
				ID:          node.ID,
				Name:        node.Name,
				Description: node.Description,
			})
		}

		if !data.Viewer.Lists.PageInfo.HasNextPage {
			break
		}
		end := data.Viewer.Lists.PageInfo.EndCursor
		cursor = &end
	}

	return lists, nil
}

// CreateList creates a list and returns its id.
func (l *ListsClient) CreateList(ctx context.Context, name, description string) (string, error) {
	const mutation = `
		mutation($name: String!, $description: String) {
			createUserList(input: {name: $name, description: $description}) {
				list { id }
			}
		}`

	var data struct {
		CreateUserList struct {
			List struct {
				ID string `json:"id"`
			} `json:"list"`
		} `json:"createUserList"`
	}

	gqlErrs, err := l.call(ctx, mutation, map[string]any{
		"name":        name,
		"description": description,
	}, &data)
	if err != nil {
		return "", fmt.Errorf("create list %q: %w", name, err)
	}
	if data.CreateUserList.List.ID == "" {
		return "", fmt.Errorf("create list %q: %w", name, firstError(gqlErrs))
	}

	return data.CreateUserList.List.ID, nil
}

// DeleteList removes a list. Deleting an already-deleted list is a no-op.
func (l *ListsClient) DeleteList(ctx context.Context, id string) error {
	const mutation = `
		mutation($id: ID!) {
			deleteUserList(input: {listId: $id}) {
				user { login }
			}
		}`

	gqlErrs, err := l.call(ctx, mutation, map[string]any{"id": id}, nil)
	if err != nil {
		// The list being gone already is the desired end state.
		if domain.IsValidation(err) {
			return nil
		}
		return fmt.Errorf("delete list %s: %w", id, err)
	}
	for _, gqlErr := range gqlErrs {
		if strings.Contains(gqlErr.Message, msgCouldNotResolve) {
			return nil
		}
		return fmt.Errorf("delete list %s: %w", id, classifyGraphQLMessage(gqlErr.Message))
	}
	return nil
}

// ResolveRepoIDs resolves owner/name references to node ids with one aliased
// query. References that no longer resolve come back per-ref in failed;
// the query failing as a whole (resource limits, server errors) comes back
// as the batch error.
func (l *ListsClient) ResolveRepoIDs(ctx context.Context, refs []domain.RepoRef) (map[domain.RepoRef]string, map[domain.RepoRef]error, error) {
	if len(refs) == 0 {
		return nil, nil, nil
	}

	var b strings.Builder
	b.WriteString("query {\n")
	for i, ref := range refs {
		fmt.Fprintf(&b, "  r%d: repository(owner: %q, name: %q) { id }\n", i, ref.Owner, ref.Name)
	}
	b.WriteString("}")

	data := map[string]*struct {
		ID string `json:"id"`
	}{}

	gqlErrs, err := l.call(ctx, b.String(), nil, &data)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve repo ids: %w", err)
	}

	perAlias := make(map[string]error)
	for _, gqlErr := range gqlErrs {
		perAlias[gqlErr.alias()] = classifyGraphQLMessage(gqlErr.Message)
	}

	ids := make(map[domain.RepoRef]string, len(refs))
	failed := make(map[domain.RepoRef]error)
	for i, ref := range refs {
		alias := fmt.Sprintf("r%d", i)
		if node := data[alias]; node != nil && node.ID != "" {
			ids[ref] = node.ID
			continue
		}
		if aliasErr, found := perAlias[alias]; found {
			failed[ref] = aliasErr
			continue
		}
		failed[ref] = fmt.Errorf("repository %s did not resolve: %w", ref.FullName(), domain.ErrValidation)
	}

	return ids, failed, nil
}

// AddToList sets the list membership of each node id with one aliased
// mutation. updateUserListsForItem replaces the item's whole membership, so
// a repo ends up in exactly the list it was assigned to.
func (l *ListsClient) AddToList(ctx context.Context, listID string, nodeIDs []string) (map[string]error, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("mutation {\n")
	for i, nodeID := range nodeIDs {
		fmt.Fprintf(&b,
			"  m%d: updateUserListsForItem(input: {itemId: %q, listIds: [%q]}) { item { __typename } }\n",
			i, nodeID, listID)
	}
	b.WriteString("}")

	gqlErrs, err := l.call(ctx, b.String(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("add to list %s: %w", listID, err)
	}

	failed := make(map[string]error)
	for _, gqlErr := range gqlErrs {
		alias := gqlErr.alias()
		var idx int
		if _, scanErr := fmt.Sscanf(alias, "m%d", &idx); scanErr != nil || idx < 0 || idx >= len(nodeIDs) {
			// An error we cannot attribute to one item fails the batch.
			return nil, fmt.Errorf("add to list %s: %w", listID, classifyGraphQLMessage(gqlErr.Message))
		}
		failed[nodeIDs[idx]] = classifyGraphQLMessage(gqlErr.Message)
	}

	return failed, nil
}

// firstError extracts something readable from an alias error list.
func firstError(gqlErrs []graphQLError) error {
	if len(gqlErrs) == 0 {
		return fmt.Errorf("empty response")
	}
	return classifyGraphQLMessage(gqlErrs[0].Message)
}
