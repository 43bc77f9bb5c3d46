// Package main hosts the ludex CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the full resolution workflow: scanning
// library roots, browsing the unified view, accepting or rejecting match
// suggestions, promoting and unmerging folders, and running the daemon in
// the foreground with `serve`. One-shot commands open the SQLite store
// directly, so the CLI works with or without a daemon running; SQLite's WAL
// mode arbitrates concurrent access when both are active.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
