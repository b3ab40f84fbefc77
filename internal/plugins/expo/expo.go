package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/veerababu08/sahtalk-backend/internal/config"
)

// Client talks to the Expo push API. Delivery is fire-and-forget from the
// relay's point of view; the only caller-visible failure is a non-2xx
// response or a timed-out request.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(cfg config.ExpoConfig) *Client {
	return &Client{
		url: cfg.URL,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type pushMessage struct {
	To    string            `json:"to"`
	Sound string            `json:"sound"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	msg := pushMessage{
		To:    token,
		Sound: "default",
		Title: title,
		Body:  body,
		Data:  data,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("expo push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("expo push: status %d", resp.StatusCode)
	}
	return nil
}
