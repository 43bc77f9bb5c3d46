// Package library persists the game library in SQLite and exposes helpers for
// driving entity resolution.
//
// The Store manages database connections, schema migrations, health queries,
// and the five core tables: local instances, canonical games, identity links,
// match clusters, and cluster members. Cluster lifecycle transitions run
// through store transactions so status changes, instance linkage, and
// canonical upserts stay atomic.
//
// Membership rows survive cluster rejection for auditing and rejection
// memory; only members of non-rejected clusters count as actively clustered.
//
// Treat this package as the single source of truth for resolution semantics;
// when you add new statuses or metadata fields, add a migration and extend the
// integrity audit.
package library
