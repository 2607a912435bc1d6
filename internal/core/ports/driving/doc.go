// Package driving provides interfaces for user-facing entry points
// (primary/inbound ports).
package driving
