// Package providers reconciles the folder listings of the supported hosting
// providers into one Folder model.
//
// Each provider maps to a small closed set of payload layouts; Normalize picks
// the layout by provider identifier, tolerates both the object-with-folders and
// bare-list shapes, applies the id/name field aliases, and HTML-decodes every
// string. Unknown or empty payloads normalize to an empty slice so a quiet
// provider never fails a run. AccessKey recovers the credential embedded in a
// configured endpoint URL so callers can redact it from messages.
package providers
