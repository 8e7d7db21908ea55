// Package catalog defines the canonical record written to the published
// document and the document's encoding and schema.
package catalog
