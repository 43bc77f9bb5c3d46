package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ludex/internal/config"
	"ludex/internal/notify"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notify.NewService(&cfg)
	if err := svc.NotifyScanCompleted(context.Background(), notify.ScanSummary{FoldersSeen: 3}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		publish        func(svc notify.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "scan completed",
			publish: func(svc notify.Service) error {
				return svc.NotifyScanCompleted(context.Background(), notify.ScanSummary{
					FoldersSeen: 42,
					NewFolders:  3,
					Missing:     1,
					Duration:    2 * time.Second,
				})
			},
			expectTitle:   "Ludex - Scan Complete",
			expectMessage: "🔍 Scan complete: 42 folders, 3 new, 1 missing (2s)",
			expectTags:    "ludex,scan,completed",
		},
		{
			name: "scan completed with matches",
			publish: func(svc notify.Service) error {
				return svc.NotifyScanCompleted(context.Background(), notify.ScanSummary{
					FoldersSeen: 10,
					Suggested:   2,
					AutoLinked:  1,
					Duration:    500 * time.Millisecond,
				})
			},
			expectTitle:   "Ludex - Scan Complete",
			expectMessage: "🔍 Scan complete: 10 folders, 0 new, 0 missing (1s)\n2 suggested, 1 auto-linked",
			expectTags:    "ludex,scan,completed",
		},
		{
			name: "suggestion",
			publish: func(svc notify.Service) error {
				return svc.NotifySuggestion(context.Background(), "Celeste", 2, 0.92)
			},
			expectTitle:   "Ludex - Match Suggested",
			expectMessage: "🎮 Suggested match: Celeste (2 copies, 92% confidence)",
			expectTags:    "ludex,match,suggested",
		},
		{
			name: "integrity",
			publish: func(svc notify.Service) error {
				return svc.NotifyIntegrityProblems(context.Background(), 2, "/library/GameA linked and clustered")
			},
			expectTitle:    "Ludex - Integrity",
			expectMessage:  "⚠️ Integrity check found 2 problems\nFirst: /library/GameA linked and clustered",
			expectTags:     "ludex,integrity,alert",
			expectPriority: "high",
		},
		{
			name: "error",
			publish: func(svc notify.Service) error {
				return svc.NotifyError(context.Background(), errors.New("database locked"), "scan")
			},
			expectTitle:    "Ludex - Error",
			expectMessage:  "❌ Error with scan: database locked",
			expectTags:     "ludex,error,alert",
			expectPriority: "high",
		},
		{
			name: "test notification",
			publish: func(svc notify.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "Ludex - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "ludex,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notify.NewService(&cfg)
			if err := tc.publish(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for muted event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.ScanSummary = false
	cfg.Notifications.Suggestions = false
	cfg.Notifications.Integrity = false
	cfg.Notifications.Errors = false

	svc := notify.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyScanCompleted(ctx, notify.ScanSummary{FoldersSeen: 1}); err != nil {
		t.Fatalf("muted scan summary returned error: %v", err)
	}
	if err := svc.NotifySuggestion(ctx, "Celeste", 2, 0.9); err != nil {
		t.Fatalf("muted suggestion returned error: %v", err)
	}
	if err := svc.NotifyIntegrityProblems(ctx, 1, ""); err != nil {
		t.Fatalf("muted integrity alert returned error: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "scan"); err != nil {
		t.Fatalf("muted error alert returned error: %v", err)
	}
}

func TestNtfyServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notify.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for rejected notification")
	}
}
