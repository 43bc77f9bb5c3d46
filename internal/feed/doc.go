// Package feed composes the unified library view from the store.
//
// The view merges three kinds of entries: canonical games, suggested match
// clusters awaiting review, and orphan instances that belong to nothing yet.
// Each entry carries a kind-prefixed opaque id ("canonical:<uuid>",
// "cluster:<n>", "orphan:<n>") so callers can round-trip rows without caring
// which table they came from.
//
// The feed is a pure read model: it never mutates the library and holds no
// state of its own, so a rescan or a freshly accepted suggestion is reflected
// on the very next call.
package feed
