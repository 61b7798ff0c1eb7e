package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"patientboard/internal/config"
	"patientboard/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T, status int, got *captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func serviceFor(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyBatchCompleted(context.Background(), notifications.BatchSummary{Uploaded: 1}); err != nil {
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
			name: "batch completed",
			send: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), notifications.BatchSummary{
					Command: "run", Assembled: 3, Uploaded: 2, Duration: 90 * time.Second,
				})
			},
			expectTitle:   "patientboard - Batch Complete",
			expectMessage: "run finished in 1m30s: 3 assembled, 2 uploaded",
			expectTags:    "patientboard,batch,completed",
		},
		{
			name: "batch with failures",
			send: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), notifications.BatchSummary{
					Command: "upload", Uploaded: 1, Failed: 2, Duration: 4 * time.Second,
				})
			},
			expectTitle:    "patientboard - Batch Complete (with errors)",
			expectMessage:  "upload finished in 4s: 0 assembled, 1 uploaded, 2 failed (see errors.txt)",
			expectTags:     "patientboard,batch,warning",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("ledger locked"), "watch")
			},
			expectTitle:    "patientboard - Error",
			expectMessage:  "Error with watch: ledger locked",
			expectTags:     "patientboard,error,alert",
			expectPriority: "high",
		},
		{
			name: "test",
			send: func(s notifications.Service) error {
				return s.TestNotification(context.Background())
			},
			expectTitle:    "patientboard - Test",
			expectMessage:  "Notification system test",
			expectTags:     "patientboard,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			server := newServer(t, http.StatusOK, &got)
			if err := tc.send(serviceFor(server.URL)); err != nil {
				t.Fatalf("send: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("message = %q, want %q", got.body, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	var got captured
	server := newServer(t, http.StatusForbidden, &got)
	err := serviceFor(server.URL).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
}
