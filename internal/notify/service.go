package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ludex/internal/config"
)

const userAgent = "Ludex/0.1.0"

// ScanSummary describes one completed library scan for notification purposes.
type ScanSummary struct {
	FoldersSeen int
	NewFolders  int
	Missing     int
	Suggested   int
	AutoLinked  int
	Duration    time.Duration
}

// Service defines the notification surface exposed to the daemon and scanner.
type Service interface {
	NotifyScanCompleted(ctx context.Context, summary ScanSummary) error
	NotifySuggestion(ctx context.Context, title string, memberCount int, confidence float64) error
	NotifyIntegrityProblems(ctx context.Context, count int, sample string) error
	NotifyError(ctx context.Context, err error, label string) error
	TestNotification(ctx context.Context) error
}

// NewService returns an ntfy-backed notifier when a topic is configured,
// otherwise a noop implementation.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		scanSummary: cfg.Notifications.ScanSummary,
		suggestions: cfg.Notifications.Suggestions,
		integrity:   cfg.Notifications.Integrity,
		errors:      cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	scanSummary bool
	suggestions bool
	integrity   bool
	errors      bool
}

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, summary ScanSummary) error {
	if !n.scanSummary {
		return nil
	}

	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	message := fmt.Sprintf(
		"🔍 Scan complete: %d folders, %d new, %d missing (%s)",
		summary.FoldersSeen,
		summary.NewFolders,
		summary.Missing,
		duration,
	)
	if summary.Suggested > 0 || summary.AutoLinked > 0 {
		message = fmt.Sprintf("%s\n%d suggested, %d auto-linked", message, summary.Suggested, summary.AutoLinked)
	}

	data := payload{
		title:   "Ludex - Scan Complete",
		message: message,
		tags:    []string{"ludex", "scan", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySuggestion(ctx context.Context, title string, memberCount int, confidence float64) error {
	if !n.suggestions {
		return nil
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "unknown"
	}
	data := payload{
		title:   "Ludex - Match Suggested",
		message: fmt.Sprintf("🎮 Suggested match: %s (%d copies, %.0f%% confidence)", title, memberCount, confidence*100),
		tags:    []string{"ludex", "match", "suggested"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyIntegrityProblems(ctx context.Context, count int, sample string) error {
	if !n.integrity {
		return nil
	}

	message := fmt.Sprintf("⚠️ Integrity check found %d problems", count)
	if sample = strings.TrimSpace(sample); sample != "" {
		message = fmt.Sprintf("%s\nFirst: %s", message, sample)
	}
	data := payload{
		title:    "Ludex - Integrity",
		message:  message,
		tags:     []string{"ludex", "integrity", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, label string) error {
	if !n.errors {
		return nil
	}

	cause := "unknown"
	if err != nil {
		cause = strings.TrimSpace(err.Error())
	}
	message := "❌ Error"
	if label = strings.TrimSpace(label); label != "" {
		message += " with " + label
	}
	message += ": " + cause

	data := payload{
		title:    "Ludex - Error",
		message:  message,
		tags:     []string{"ludex", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Ludex - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"ludex", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy rejected notification: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyScanCompleted(context.Context, ScanSummary) error       { return nil }
func (noopService) NotifySuggestion(context.Context, string, int, float64) error { return nil }
func (noopService) NotifyIntegrityProblems(context.Context, int, string) error   { return nil }
func (noopService) NotifyError(context.Context, error, string) error             { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
