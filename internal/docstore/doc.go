// Package docstore reads and conditionally writes the published catalog file
// through the GitHub contents API.
//
// Every write carries the version token (blob SHA) observed by the preceding
// read; a stale token surfaces as ErrConflict and is never retried here.
// ReadRaw serves the unauthenticated raw mirror used for display.
package docstore
