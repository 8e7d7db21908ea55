// Package history keeps a local SQLite ledger of update runs.
//
// Each run records its outcome, entry count, failure counts and the published
// version token, plus one row per contained provider or item failure. The
// ledger is informational only: the remote document is the source of truth and
// nothing here is consulted when deciding what to publish.
//
// Schema changes bump schemaVersion in schema.go; older databases are then
// rejected and must be deleted.
package history
