// Package notifications delivers run progress and final status messages.
//
// NewService fans each message out to an ntfy topic (when configured) and to a
// terminal writer, degrading to a no-op when neither is available. Delivery is
// best effort: callers log send errors and carry on. Per-item progress can be
// muted for ntfy with notifications.progress = false while final statuses are
// always sent.
package notifications
