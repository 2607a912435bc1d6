package github

import (
	"context"
	"encoding/json"
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

// newTestListsClient wires a ListsClient at a test server with a fast limiter.
func newTestListsClient(t *testing.T, handler http.HandlerFunc) *ListsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &ListsClient{
		gql: &graphQLClient{
			httpClient: srv.Client(),
			endpoint:   srv.URL,
			limiter:    NewRateLimiter(),
		},
		limiter: ratelimit.New(ratelimit.Config{
			Interval: time.Millisecond,
			Floor:    time.Millisecond,
		}),
	}
}

func TestResolveRepoIDs_PartialResolution(t *testing.T) {
	t.Parallel()

	var gotQuery string
	client := newTestListsClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req graphQLRequest
		require.NoError(t, json.Unmarshal(body, &req))
		gotQuery = req.Query

		_, _ = w.Write([]byte(`{
			"data": {"r0": {"id": "R_node0"}, "r1": null},
			"errors": [{
				"type": "NOT_FOUND",
				"message": "Could not resolve to a Repository with the name 'gone/repo'.",
				"path": ["r1"]
			}]
		}`))
	})

	refs := []domain.RepoRef{
		{Owner: "alive", Name: "repo"},
		{Owner: "gone", Name: "repo"},
	}
	ids, failed, err := client.ResolveRepoIDs(context.Background(), refs)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, `r0: repository(owner: "alive", name: "repo")`)
	assert.Contains(t, gotQuery, `r1: repository(owner: "gone", name: "repo")`)

	require.Len(t, ids, 1)
	assert.Equal(t, "R_node0", ids[refs[0]])
	require.Len(t, failed, 1)
	assert.True(t, domain.IsValidation(failed[refs[1]]))
}

func TestResolveRepoIDs_ResourceLimitsFailsBatch(t *testing.T) {
	t.Parallel()

	client := newTestListsClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": null,
			"errors": [{"message": "Resource limits exceeded for this query"}]
		}`))
	})

	_, _, err := client.ResolveRepoIDs(context.Background(), []domain.RepoRef{
		{Owner: "a", Name: "b"},
		{Owner: "c", Name: "d"},
	})
	require.Error(t, err)
	assert.True(t, domain.IsSplittable(err))
}

func TestResolveRepoIDs_MissingAliasIsValidationFailure(t *testing.T) {
	t.Parallel()

	// Data omits r0 entirely and reports no error for it.
	client := newTestListsClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {}}`))
	})

	ref := domain.RepoRef{Owner: "a", Name: "b"}
	ids, failed, err := client.ResolveRepoIDs(context.Background(), []domain.RepoRef{ref})
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.Len(t, failed, 1)
	assert.True(t, domain.IsValidation(failed[ref]))
}

func TestAddToList_AttributesAliasErrors(t *testing.T) {
	t.Parallel()

	client := newTestListsClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": {"m0": {"item": {"__typename": "Repository"}}, "m1": null},
			"errors": [{
				"message": "Could not resolve to a node with the global id of 'bad'.",
				"path": ["m1"]
			}]
		}`))
	})

	failed, err := client.AddToList(context.Background(), "L_list", []string{"R_good", "bad"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.True(t, domain.IsValidation(failed["bad"]))
	assert.NotContains(t, failed, "R_good")
}

func TestAddToList_UnattributableErrorFailsBatch(t *testing.T) {
	t.Parallel()

	client := newTestListsClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": null,
			"errors": [{"message": "Something went wrong while executing your query.", "path": ["unexpected"]}]
		}`))
	})

	_, err := client.AddToList(context.Background(), "L_list", []string{"R_a"})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestCreateList_ReturnsID(t *testing.T) {
	t.Parallel()

	client := newTestListsClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req graphQLRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "Machine Learning", req.Variables["name"])

		_, _ = w.Write([]byte(`{"data": {"createUserList": {"list": {"id": "L_new"}}}}`))
	})

	id, err := client.CreateList(context.Background(), "Machine Learning", "ML frameworks and tools")
	require.NoError(t, err)
	assert.Equal(t, "L_new", id)
}

func TestDeleteList_AlreadyGoneIsNoOp(t *testing.T) {
	t.Parallel()

	client := newTestListsClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": null,
			"errors": [{"message": "Could not resolve to a node with the global id of 'L_dead'.", "path": ["deleteUserList"]}]
		}`))
	})

	assert.NoError(t, client.DeleteList(context.Background(), "L_dead"))
}

func TestListLists_Paginates(t *testing.T) {
	t.Parallel()

	page := 0
	client := newTestListsClient(t, func(w http.ResponseWriter, _ *http.Request) {
		page++
		if page == 1 {
			_, _ = w.Write([]byte(`{"data": {"viewer": {"lists": {
				"nodes": [{"id": "L_1", "name": "One", "description": "first"}],
				"pageInfo": {"hasNextPage": true, "endCursor": "CUR"}
			}}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data": {"viewer": {"lists": {
			"nodes": [{"id": "L_2", "name": "Two", "description": ""}],
			"pageInfo": {"hasNextPage": false, "endCursor": ""}
		}}}}`))
	})

	lists, err := client.ListLists(context.Background())
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "L_1", lists[0].ID)
	assert.Equal(t, "Two", lists[1].Name)
}

func TestCall_ThrottleWidensAdaptiveInterval(t *testing.T) {
	t.Parallel()

	client := newTestListsClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	before := client.limiter.Interval()
	_, err := client.ListLists(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsThrottled(err))
	assert.Greater(t, client.limiter.Interval(), before)
}
