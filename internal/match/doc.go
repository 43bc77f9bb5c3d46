// Package match implements the suggestion engine that turns unresolved
// library instances into match cluster proposals.
//
// A scan pass snapshots the orphan set, scores each orphan against the
// canonical registry and then against the other orphans, and commits every
// qualifying proposal as a suggested cluster in its own short transaction.
// Scores blend normalized title similarity with release-year, developer, and
// catalog-identity signals; release-variant markers (regions, editions)
// discount a pairing just enough to keep it below the auto-accept line.
// Proposals at or above the auto-accept threshold are handed straight to the
// cluster lifecycle manager. The engine never writes canonical games itself.
package match
