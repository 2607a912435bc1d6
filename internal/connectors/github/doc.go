// Package github talks to the GitHub API on behalf of the organizer.
//
// Two transports live here. The REST client (client.go) reads starred
// repositories, readmes, and liveness through go-github, paced by a
// dual-strategy rate limiter that combines proactive throttling with the
// quota headers GitHub returns. The GraphQL client (graphql.go, lists.go)
// drives the Lists feature, which has no REST surface; its calls are paced
// by the adaptive interval limiter and batched with aliases so one round
// trip covers many repositories.
//
// Errors cross the boundary classified into the domain taxonomy: throttling,
// oversized batches, transient failures, and per-item validation failures
// each unwrap to their domain sentinel so callers never string-match here.
package github
