// Package services defines shared utilities consumed by the resolver,
// match engine, and HTTP surface.
//
// Key responsibilities:
//   - Context helpers that stamp cluster IDs, instance paths, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent HTTP statuses and retry decisions.
//
// Use these helpers when wiring new operations so operational behaviour (error
// handling, observability, retries) stays uniform across the system.
package services
