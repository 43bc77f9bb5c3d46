// Package notify delivers library events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set. Each
// event kind honors its own config toggle, so a user can keep error alerts
// while muting per-scan summaries.
//
// Extend this package if you need alternative transports; the daemon and
// scanner depend only on the Service interface.
package notify
