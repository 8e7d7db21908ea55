// Package fetch issues JSON GET requests against upstream APIs with bounded
// retries.
//
// Two budgets are tracked separately. General failures (transport errors and
// non-2xx statuses other than 429) back off exponentially from the base delay
// and stop after the configured retry ceiling. HTTP 429 responses wait for
// Retry-After, or the rate-limit delay when the header is absent, and draw only
// on the rate-limit budget. Every failure surfaces as a *Error whose Kind tells
// callers which budget ran out.
package fetch
