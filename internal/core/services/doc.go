// Package services contains the core business logic: building the category
// taxonomy, assigning starred repositories to categories, reconciling the
// organized mapping against remote lists, auditing star liveness, and the
// pipeline that orchestrates the phases.
package services
