// Package main hosts the quizbooth CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the interactive booth loop, inspects
// stored session state, prints the quiz catalog, and scaffolds
// configuration. It centralizes configuration resolution and logging setup
// so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
