// Package workflow runs one complete catalog update: configuration check, run
// lock, assembly, publish, history record and final status notification.
//
// A Runner owns no long-lived state. Each call to Run gets its own run ID,
// which is stamped on every log line and on the history record. Contained
// provider and item failures never abort a run; a configuration gap, a failed
// document read, a version conflict or cancellation does, and each abort is
// reported with exactly one final notification.
package workflow
