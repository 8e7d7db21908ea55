// Package jikan enriches folder names with anime metadata from the Jikan
// search API. Lookups go through the shared fetcher so they inherit its retry
// and rate-limit budgets.
package jikan
