package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPService implements webhook notifications via HTTP POST with bounded
// retries.
type HTTPService struct {
	httpClient *http.Client
	url        string
	log        zerolog.Logger
	maxRetries int
	retryDelay time.Duration
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService creates a new HTTP-based webhook service. An empty URL
// disables delivery.
func NewHTTPService(url string, timeout time.Duration, log zerolog.Logger) *HTTPService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPService{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		log:        log.With().Str("component", "webhook").Logger(),
		maxRetries: 3,
		retryDelay: 2 * time.Second,
	}
}

// NotifyTurnCompleted sends a notification when a chat turn finishes.
func (s *HTTPService) NotifyTurnCompleted(ctx context.Context, threadID string, messageCount int, completedAt time.Time) error {
	if s.url == "" {
		s.log.Debug().Str("thread_id", threadID).Msg("no webhook URL configured, skipping notification")
		return nil
	}

	payload := Payload{
		Event:        "turn.completed",
		ThreadID:     threadID,
		MessageCount: messageCount,
		CompletedAt:  completedAt.UTC().Format(time.RFC3339),
	}
	return s.send(ctx, payload)
}

func (s *HTTPService) send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create webhook request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "openchat-server/1.0")
		req.Header.Set("X-Openchat-Event", payload.Event)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("send webhook (attempt %d/%d): %w", attempt, s.maxRetries, err)
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("webhook delivery failed")
			if attempt < s.maxRetries {
				time.Sleep(s.retryDelay)
			}
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Int("status", resp.StatusCode).Str("thread_id", payload.ThreadID).Msg("webhook delivered")
			return nil
		}

		lastErr = fmt.Errorf("webhook returned status %d (attempt %d/%d)", resp.StatusCode, attempt, s.maxRetries)
		s.log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("webhook delivery failed")
		if attempt < s.maxRetries {
			time.Sleep(s.retryDelay)
		}
	}

	return lastErr
}

// Notifier adapts Service to the orchestrator's fire-and-forget contract.
type Notifier struct {
	service Service
	log     zerolog.Logger
}

// NewNotifier builds a notifier over the webhook service.
func NewNotifier(service Service, log zerolog.Logger) *Notifier {
	return &Notifier{
		service: service,
		log:     log.With().Str("component", "webhook-notifier").Logger(),
	}
}

// TurnCompleted delivers the notification in the background so the response
// stream never waits on the webhook endpoint.
func (n *Notifier) TurnCompleted(threadID string, messageCount int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.service.NotifyTurnCompleted(ctx, threadID, messageCount, time.Now()); err != nil {
			n.log.Warn().Err(err).Str("thread_id", threadID).Msg("turn webhook failed")
		}
	}()
}
