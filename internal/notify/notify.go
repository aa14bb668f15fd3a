// Package notify posts a short run report to a Telegram chat so operators
// see pipeline outcomes without reading logs. It is optional: an
// unconfigured notifier is a no-op.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/regwatch/telebrief/internal/logger"
	"github.com/regwatch/telebrief/internal/retry"
)

const defaultAPIBase = "https://api.telegram.org"

type Notifier struct {
	token   string
	chatID  string
	client  *http.Client
	apiBase string
	retry   retry.Config
}

func New(token, chatID string) *Notifier {
	return &Notifier{
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: defaultAPIBase,
		retry:   retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
	}
}

func (n *Notifier) Configured() bool {
	return n.token != "" && n.chatID != ""
}

// RunReport summarizes one pipeline run for the ops channel.
type RunReport struct {
	Date       time.Time
	Articles   int
	FromFeeds  int
	FromScrape int
	Delivered  bool
	Duration   time.Duration
	Err        error
}

func (r RunReport) message() string {
	if r.Err != nil {
		return fmt.Sprintf("<b>Telecom digest run failed</b> %s\nError: %s",
			r.Date.Format("2006-01-02"), r.Err)
	}

	delivered := "no"
	if r.Delivered {
		delivered = "yes"
	}
	return fmt.Sprintf("<b>Telecom digest run</b> %s\nArticles: %d (%d RSS, %d web)\nDelivered: %s\nDuration: %s",
		r.Date.Format("2006-01-02"), r.Articles, r.FromFeeds, r.FromScrape, delivered, r.Duration.Round(time.Second))
}

// Report sends the run summary. Failures are retried; an unconfigured
// notifier returns nil immediately.
func (n *Notifier) Report(ctx context.Context, report RunReport) error {
	if !n.Configured() {
		return nil
	}

	err := retry.WithRetry(ctx, n.retry, func() error {
		return n.sendMessage(ctx, report.message())
	})
	if err != nil {
		return fmt.Errorf("notify: report run: %w", err)
	}

	logger.Debug("run report posted")
	return nil
}

func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify: telegram api status %d", resp.StatusCode)
	}
	return nil
}
