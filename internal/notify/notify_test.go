package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/regwatch/telebrief/internal/retry"
)

func testNotifier(apiBase string) *Notifier {
	n := New("token123", "chat456")
	n.apiBase = apiBase
	n.retry = retry.Config{MaxAttempts: 2, Delay: time.Millisecond}
	return n
}

func TestReport_PostsMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL)
	err := n.Report(context.Background(), RunReport{
		Date:       time.Date(2025, 3, 14, 7, 0, 0, 0, time.UTC),
		Articles:   12,
		FromFeeds:  9,
		FromScrape: 3,
		Delivered:  true,
		Duration:   42 * time.Second,
	})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if gotPath != "/bottoken123/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload["chat_id"] != "chat456" {
		t.Errorf("chat_id = %v", gotPayload["chat_id"])
	}
	text, _ := gotPayload["text"].(string)
	for _, want := range []string{"2025-03-14", "Articles: 12 (9 RSS, 3 web)", "Delivered: yes", "42s"} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q in %q", want, text)
		}
	}
}

func TestReport_FailureMessage(t *testing.T) {
	var text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		text, _ = payload["text"].(string)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL)
	err := n.Report(context.Background(), RunReport{
		Date: time.Date(2025, 3, 14, 7, 0, 0, 0, time.UTC),
		Err:  errors.New("generation service unavailable"),
	})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if !strings.Contains(text, "run failed") || !strings.Contains(text, "generation service unavailable") {
		t.Errorf("failure message = %q", text)
	}
}

func TestReport_RetriesOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL)
	if err := n.Report(context.Background(), RunReport{Date: time.Now()}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestReport_Unconfigured(t *testing.T) {
	n := New("", "")
	if n.Configured() {
		t.Error("Configured() = true for empty notifier")
	}
	if err := n.Report(context.Background(), RunReport{Date: time.Now()}); err != nil {
		t.Errorf("Report on unconfigured notifier = %v, want nil", err)
	}
}
