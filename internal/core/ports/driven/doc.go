// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the star source, the remote list API, the
// classification service, and the state store.
package driven
