// Package main hosts the animesync CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration once, builds the
// structured logger, and hands each subcommand to the internal packages:
// run drives the update workflow, show and history read back what was
// published, check and providers report readiness, and config scaffolds the
// configuration file.
//
// Keep this package lean: new behaviour belongs in an internal package first
// and is surfaced here as a command or flag.
package main
