// Package textutil provides small text helpers shared by the CLI, chiefly
// Chunk, which splits long reports into pieces that fit a bounded output
// channel.
package textutil
