// Package services defines shared utilities consumed by the run pipeline.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and provider
//     names for logging.
//   - Structured error markers plus the Wrap helper that translate aborting
//     failures into consistent history statuses.
//
// Use these helpers when wiring new pipeline steps so failure classification
// and observability stay uniform.
package services
