// Package aggregate assembles the catalog from every configured hosting
// provider.
//
// For each provider the Assembler lists folders, drops incomplete ones, looks
// each remaining folder up in the metadata service and appends the resulting
// entry, sending one progress notification per outcome. Provider and item
// failures are contained and reported in the Run; only cancellation aborts.
// Providers may be processed concurrently, but entries are always returned in
// configuration order.
package aggregate
