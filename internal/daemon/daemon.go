package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"ludex/internal/catalogs"
	"ludex/internal/config"
	"ludex/internal/feed"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/match"
	"ludex/internal/notify"
	"ludex/internal/preflight"
	"ludex/internal/resolve"
	"ludex/internal/scanner"
	"ludex/internal/services"
)

// Daemon coordinates the scan loop, the HTTP API, and the library watcher,
// and enforces single-instance execution through a lock file.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	baseLogger *slog.Logger
	store      *library.Store
	scanner    *scanner.Scanner
	engine     *match.Engine
	resolver   *resolve.Service
	feed       *feed.Service
	notifier   notify.Service
	enricher   *catalogs.Enricher

	scheduler *scheduler
	watcher   *scanner.Watcher
	server    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DBPath       string
	LockFilePath string
	Stats        library.HealthSummary
	Checks       []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *library.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}

	resolver := resolve.New(cfg, store, logger)
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		baseLogger: logger,
		store:      store,
		scanner:    scanner.New(cfg, store, logger),
		engine:     match.New(cfg, store, resolver, logger),
		resolver:   resolver,
		feed:       feed.New(store),
		notifier:   notify.NewService(cfg),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	if registry := catalogs.NewRegistry(cfg, logger); registry.Enabled() {
		d.enricher = catalogs.NewEnricher(store, registry, logger)
	}
	d.scheduler = newScheduler(cfg, d.runScan)
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the scan loop, watcher, and
// HTTP API. It refuses to serve when a preflight check fails.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	var failed []string
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if !result.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	if len(failed) > 0 {
		return services.Wrap(
			services.ErrConfiguration,
			"daemon",
			"start",
			"preflight failed: "+strings.Join(failed, "; "),
			nil,
		)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ludex daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.scheduler.start(runCtx)

	if d.cfg.Workflow.WatchLibrary {
		debounce := time.Duration(d.cfg.Workflow.WatchDebounce) * time.Second
		w, watchErr := scanner.NewWatcher(d.cfg.Paths.LibraryRoots, debounce, func() {
			d.TriggerScan("watch")
		}, d.baseLogger)
		if watchErr != nil {
			d.logger.Warn("library watcher unavailable", logging.Error(watchErr))
		} else {
			d.watcher = w
			d.watcher.Start()
		}
	}

	if d.server != nil {
		if err := d.server.start(runCtx); err != nil {
			cancel()
			d.cancel = nil
			if d.watcher != nil {
				_ = d.watcher.Close()
				d.watcher = nil
			}
			d.scheduler.wait()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("ludex daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background work and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.server != nil {
		d.server.stop()
	}
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.logger.Warn("library watcher close", logging.Error(err))
		}
		d.watcher = nil
	}
	d.scheduler.wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("ludex daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// TriggerScan queues a manual scan. It reports false when a scan request is
// already pending.
func (d *Daemon) TriggerScan(reason string) bool {
	return d.scheduler.requestScan(reason)
}

// TestNotification sends a test push using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		Checks:       preflight.RunAll(ctx, d.cfg),
	}
	if stats, err := d.store.Health(ctx); err == nil {
		status.Stats = stats
	} else {
		d.logger.Warn("library health unavailable", logging.Error(err))
	}
	return status
}

// runScan performs one full pass: refresh instances from disk, run the match
// engine, then notify, refresh catalog metadata, and verify integrity.
// Failures are logged and notified, never fatal to the loop. Every pass gets
// its own correlation id so lines from overlapping triggers stay
// attributable.
func (d *Daemon) runScan(ctx context.Context, reason string) {
	start := time.Now()
	ctx = services.WithOperation(services.WithRequestID(ctx, uuid.NewString()), "scan")
	log := logging.WithContext(ctx, d.logger)

	summary, err := d.scanner.Scan(ctx)
	if err != nil {
		log.Error("library scan failed", logging.String("reason", reason), logging.Error(err))
		d.notifyFailure(ctx, err, "scan")
		return
	}

	report, err := d.engine.RunScan(ctx)
	if err != nil {
		log.Error("match pass failed", logging.String("reason", reason), logging.Error(err))
		d.notifyFailure(ctx, err, "match")
		return
	}

	duration := time.Since(start)
	log.Info("scan completed",
		logging.String("reason", reason),
		logging.Int("seen", summary.Seen),
		logging.Int("new", summary.New),
		logging.Int64("missing", summary.Missing),
		logging.Int("suggested", report.Suggested),
		logging.Int("auto_linked", report.AutoLinked),
		logging.Duration("duration", duration),
	)

	if err := d.notifier.NotifyScanCompleted(ctx, notify.ScanSummary{
		FoldersSeen: summary.Seen,
		NewFolders:  summary.New,
		Missing:     int(summary.Missing),
		Suggested:   report.Suggested,
		AutoLinked:  report.AutoLinked,
		Duration:    duration,
	}); err != nil {
		log.Warn("scan notification failed", logging.Error(err))
	}

	if report.Suggested > 0 {
		d.notifyTopSuggestion(ctx)
	}
	d.refreshCatalogs(ctx)
	d.verifyIntegrity(ctx)
}

// refreshCatalogs runs one enrichment pass over the identity links. The
// registry's per-source rate budgets bound the outbound request rate, so a
// pass per scan stays cheap; with no catalog enabled this is a no-op.
func (d *Daemon) refreshCatalogs(ctx context.Context) {
	if d.enricher == nil {
		return
	}
	if _, err := d.enricher.Refresh(ctx); err != nil {
		logging.WithContext(ctx, d.logger).Warn("catalog refresh failed", logging.Error(err))
	}
}

func (d *Daemon) notifyFailure(ctx context.Context, err error, label string) {
	if notifyErr := d.notifier.NotifyError(ctx, err, label); notifyErr != nil {
		logging.WithContext(ctx, d.logger).Warn("failure notification failed", logging.Error(notifyErr))
	}
}

func (d *Daemon) notifyTopSuggestion(ctx context.Context) {
	log := logging.WithContext(ctx, d.logger)
	suggestions, err := d.feed.Suggestions(ctx)
	if err != nil {
		log.Warn("suggestion lookup failed", logging.Error(err))
		return
	}
	if len(suggestions) == 0 {
		return
	}
	top := suggestions[0]
	title := strings.TrimSpace(top.Cluster.SuggestedTitle)
	if title == "" {
		title = top.Members[0].InstancePath
	}
	if err := d.notifier.NotifySuggestion(ctx, title, len(top.Members), top.Cluster.Confidence); err != nil {
		log.Warn("suggestion notification failed", logging.Error(err))
	}
}

// verifyIntegrity reports partition violations after each pass. Violations
// are surfaced for manual repair, never auto-corrected.
func (d *Daemon) verifyIntegrity(ctx context.Context) {
	log := logging.WithContext(ctx, d.logger)
	violations, err := d.store.CheckIntegrity(ctx)
	if err != nil {
		log.Warn("integrity check failed", logging.Error(err))
		return
	}
	if len(violations) == 0 {
		return
	}
	first := violations[0]
	log.Error("integrity violations detected",
		logging.Int("count", len(violations)),
		logging.String("kind", first.Kind),
		logging.String("instance_path", first.InstancePath),
		logging.Alert("integrity"),
	)
	if err := d.notifier.NotifyIntegrityProblems(ctx, len(violations), first.Detail); err != nil {
		log.Warn("integrity notification failed", logging.Error(err))
	}
}
