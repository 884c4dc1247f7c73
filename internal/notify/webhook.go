// Package notify pushes completion notices to an external endpoint, for
// integrations (chat bots, reservation flows) that want the final match list
// without holding a websocket open.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/restaurant-matching/internal/models"
)

type WebhookNotifier struct {
	Endpoint string
	Client   *http.Client
	Logger   *slog.Logger
}

func NewWebhookNotifier(endpoint string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 3 * time.Second},
		Logger:   logger,
	}
}

// NotifyCompleted POSTs the summary once, best effort. A failed delivery is
// logged and forgotten; it never affects the session.
func (w *WebhookNotifier) NotifyCompleted(ctx context.Context, sum models.SessionSummary) {
	body := map[string]any{
		"event":           "session_completed",
		"session_id":      sum.SessionID,
		"location":        sum.LocationDescription,
		"players":         sum.PlayerNames,
		"mutual_like_ids": sum.MutualLikeIDs,
		"completed_at":    sum.CompletedAt,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(b))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		w.Logger.Warn("webhook delivery failed", "session_id", sum.SessionID, "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.Logger.Warn("webhook rejected", "session_id", sum.SessionID, "status", resp.StatusCode)
	}
}
