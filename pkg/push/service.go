// Package push delivers committee notifications to a chat webhook. The
// payload carries both Slack and Discord text keys so either webhook style
// works without configuration.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RequestTimeout for webhook requests
const RequestTimeout = 10 * time.Second

// Message is one committee notification.
type Message struct {
	Title  string
	Body   string
	Fields []Field
}

// Field is a labelled line appended to the message body.
type Field struct {
	Name  string
	Value string
}

// Service posts notifications to the configured webhook. A service without
// a webhook URL drops messages silently so callers never need to check.
type Service struct {
	client     *http.Client
	webhookURL string
	logger     *slog.Logger
}

// NewService creates a webhook notification service. An empty webhookURL
// disables delivery.
func NewService(webhookURL string, logger *slog.Logger) *Service {
	return &Service{
		client: &http.Client{
			Timeout: RequestTimeout,
		},
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// Enabled reports whether a webhook is configured.
func (s *Service) Enabled() bool {
	return s.webhookURL != ""
}

// Send posts the message to the webhook.
func (s *Service) Send(ctx context.Context, msg *Message) error {
	if !s.Enabled() {
		s.logger.Debug("webhook not configured, dropping notification",
			slog.String("title", msg.Title))
		return nil
	}

	text := render(msg)
	payload, err := json.Marshal(map[string]string{
		"text":    text, // Slack
		"content": text, // Discord
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.logger.Error("webhook rejected notification",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)))
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	s.logger.Info("notification sent", slog.String("title", msg.Title))
	return nil
}

// SendText posts a plain one-line notification.
func (s *Service) SendText(ctx context.Context, body string) error {
	return s.Send(ctx, &Message{Body: body})
}

func render(msg *Message) string {
	var b strings.Builder
	if msg.Title != "" {
		b.WriteString("**")
		b.WriteString(msg.Title)
		b.WriteString("**\n")
	}
	b.WriteString(msg.Body)
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	return b.String()
}
