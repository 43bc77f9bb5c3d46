// Package catalogs talks to external game catalogs (IGDB, Steam, GOG) and
// normalizes their payloads into a source-independent shape.
//
// A Registry holds one fetcher per enabled source and applies per-source rate
// limits and request timeouts. The Enricher uses the registry to refresh
// identity link snapshots and to fill descriptive fields on canonical games
// that local scanning could not provide. Catalog data never overwrites values
// already present on a canonical game.
package catalogs
