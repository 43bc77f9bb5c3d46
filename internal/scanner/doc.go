// Package scanner discovers game folders under the configured library roots
// and keeps the instance table in sync with the filesystem.
//
// Each immediate subfolder of a root is one instance, keyed by its absolute
// path. Scans are idempotent: known folders are refreshed in place, vanished
// folders are marked missing rather than deleted, and reappearing folders are
// reactivated with their linkage and user edits intact. A debounced fsnotify
// watcher turns top-level folder churn into rescan triggers for the daemon.
package scanner
