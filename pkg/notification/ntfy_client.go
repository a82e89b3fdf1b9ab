package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NtfyClient publishes notifications to an ntfy topic.
type NtfyClient struct {
	serverURL  string
	topic      string
	httpClient *http.Client
}

// NewNtfyClient creates a new ntfy client. It uses its own HTTP client so
// publishing never passes through an intercepted transport.
func NewNtfyClient(serverURL, topic string) *NtfyClient {
	return &NtfyClient{
		serverURL: serverURL,
		topic:     topic,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type ntfyMessage struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

// Send publishes the notification using the ntfy JSON API.
func (c *NtfyClient) Send(notification Notification) error {
	msg := ntfyMessage{
		Topic:   c.topic,
		Title:   ntfyTitle(notification.Style),
		Message: notification.Message,
	}
	switch notification.Style {
	case StyleSuccess:
		msg.Tags = []string{"white_check_mark"}
	case StyleValidationError:
		msg.Tags = []string{"warning"}
	default:
		msg.Tags = []string{"x"}
		msg.Priority = 4
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal ntfy message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.serverURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish to ntfy: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ntfy returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func ntfyTitle(style Style) string {
	switch style {
	case StyleSuccess:
		return "HTTP request succeeded"
	case StyleValidationError:
		return "HTTP validation error"
	default:
		return "HTTP request failed"
	}
}
