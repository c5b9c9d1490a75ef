// Package slack sends triage pass summaries to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/fieldtriage/internal/record"
	"github.com/linnemanlabs/fieldtriage/internal/triage"
)

const (
	maxFailureLines = 20
	httpTimeout     = 10 * time.Second
)

// Notifier posts pass reports to a Slack webhook.
type Notifier struct {
	webhookURL string
	logger     log.Logger
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		logger:     logger,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a pass report to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, rep *triage.Report) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(rep)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(r *triage.Report) map[string]any {
	blocks := []map[string]any{
		headerBlock(r),
		{"type": "divider"},
		fieldsBlock(r),
	}
	if fb := failuresBlock(r); fb != nil {
		blocks = append(blocks, map[string]any{"type": "divider"}, fb)
	}
	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(r))

	return map[string]any{"blocks": blocks}
}

func headerBlock(r *triage.Report) map[string]any {
	emoji := reportEmoji(r)
	title := "Triage Pass Complete"
	if r.Status == triage.RunStatusFailed {
		title = "Triage Pass Failed"
	}
	text := fmt.Sprintf("%s %s: %d flagged of %d", emoji, title, r.Flagged, r.Queried)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(r *triage.Report) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", r.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Flagged:* %d", r.Flagged),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Cleared:* %d", r.Cleared),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Semantic failures:* %d", r.SemanticFailures),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Write failures:* %d", len(r.WriteFailures())),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", r.Duration),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

// failuresBlock lists records that need operator attention: flagged
// emergencies and rejected writes. Nil when there is nothing to list.
func failuresBlock(r *triage.Report) map[string]any {
	// A flagged record with a rejected write gets both lines.
	var lines []string
	for _, o := range r.Outcomes {
		if o.Label == record.StatusEmergency {
			lines = append(lines, fmt.Sprintf("• record %s flagged for review (%s)", o.RecordID, o.Stage))
		}
		if !o.Written {
			lines = append(lines, fmt.Sprintf("• record %s write failed: %s", o.RecordID, o.WriteError))
		}
	}
	if r.Error != "" {
		lines = append(lines, fmt.Sprintf("• pass error: %s", r.Error))
	}
	if len(lines) == 0 {
		return nil
	}
	if len(lines) > maxFailureLines {
		lines = append(lines[:maxFailureLines], fmt.Sprintf("… and %d more", len(lines)-maxFailureLines))
	}

	text := ""
	for i, l := range lines {
		if i > 0 {
			text += "\n"
		}
		text += l
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(r *triage.Report) map[string]any {
	ts := r.CompletedAt
	if ts.IsZero() {
		ts = r.StartedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("fieldtriage • run %s • %s", r.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func reportEmoji(r *triage.Report) string {
	switch {
	case r.Status == triage.RunStatusFailed:
		return "\U0001f534" // red circle
	case r.Flagged > 0:
		return "\U0001f6a8" // rotating light
	case len(r.WriteFailures()) > 0 || r.SemanticFailures > 0:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}
