package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"narrate/internal/config"
	"narrate/internal/notifications"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func newService(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyWorkInitialized(context.Background(), "雨夜", 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "work initialized",
			send: func(s notifications.Service) error {
				return s.NotifyWorkInitialized(context.Background(), " 雨夜 ", 12)
			},
			expectTitle:   "Narrate - Work Ready",
			expectMessage: "📖 雨夜 split into 12 chapters",
			expectTags:    "narrate,init,completed",
		},
		{
			name: "range completed",
			send: func(s notifications.Service) error {
				return s.NotifyRangeCompleted(context.Background(), "雨夜", 3, 0, 95*time.Second)
			},
			expectTitle:   "Narrate - Chapters Complete",
			expectMessage: "🎧 雨夜: 3 chapters assembled in 1m35s",
			expectTags:    "narrate,run,completed",
		},
		{
			name: "range completed with failures",
			send: func(s notifications.Service) error {
				return s.NotifyRangeCompleted(context.Background(), "雨夜", 2, 1, 0)
			},
			expectTitle:    "Narrate - Chapters Complete (with errors)",
			expectMessage:  "🎧 雨夜: 2 succeeded, 1 failed in 0s",
			expectTags:     "narrate,run,completed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("boom "), "chapter 3")
			},
			expectTitle:    "Narrate - Error",
			expectMessage:  "❌ Error with chapter 3: boom",
			expectTags:     "narrate,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "Narrate - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "narrate,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ch := newCaptureServer(t, http.StatusOK)
			if err := tt.send(newService(srv.URL)); err != nil {
				t.Fatalf("send: %v", err)
			}
			got := <-ch
			if got.title != tt.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tt.expectTitle)
			}
			if got.message != tt.expectMessage {
				t.Fatalf("message = %q, want %q", got.message, tt.expectMessage)
			}
			if got.tags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tt.expectTags)
			}
			if got.priority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusForbidden)
	if err := newService(srv.URL).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
