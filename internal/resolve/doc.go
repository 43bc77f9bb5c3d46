// Package resolve owns the cluster lifecycle: accepting and rejecting
// suggested clusters, promoting orphans, and unmerging instances. Every
// transition runs in one store transaction so cluster status, membership,
// canonical writes, and instance linkage commit or roll back together. When
// organize-on-accept is enabled, folder moves happen before the commit and
// are reversed if it fails.
package resolve
