// Package daemon runs the ludex background service. One daemon owns the
// database: a lock file under the data directory stops a second instance
// from starting, and every preflight check must pass before the daemon
// serves anything.
//
// Three workers run under a shared context. The scheduler performs a scan
// pass at startup and then on a fixed interval, with a buffered trigger
// channel for manual requests from the CLI or HTTP API. The watcher
// debounces filesystem events on the library roots into scan triggers. The
// API server exposes the read model and the resolution commands over HTTP;
// commands run synchronously so a 2xx response means the database already
// reflects the change.
//
// A scan pass refreshes instances from disk, runs the match engine, sends
// notifications, and finishes with an integrity sweep. Pass failures are
// logged and pushed but never stop the loop.
package daemon
