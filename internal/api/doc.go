// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal library models into transport-friendly DTOs
// that scripts and UIs can render without coupling to internal types.
//
// # Key Types
//
// LibraryEntry: one row of the unified view (canonical, suggested, or orphan)
// with the kind-prefixed opaque id assigned by the feed.
//
// Suggestion: a pending match cluster with its members, primary first.
//
// CanonicalDetail: a canonical game together with its linked instances and
// identity links.
//
// ScanResult: scanner and match engine counters for one pass.
//
// DaemonStatus: running state, library stats, and preflight check results.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (library.ClusterStatus, feed.EntryType) are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds; zero times are omitted.
// Metadata bags are cloned into plain maps so a payload never aliases store
// state.
package api
