// Package voice sends spoken announcements to the speaker on the robot.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Announcer speaks a short text to the user
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts announcements to the voice service
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new voice client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTPDoer(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a client with a custom HTTP implementation
func NewClientWithHTTPDoer(baseURL string, doer HTTPDoer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: doer,
	}
}

type speakRequest struct {
	Text string `json:"text"`
}

// Announce posts text to the /speak endpoint
func (c *Client) Announce(ctx context.Context, text string) error {
	jsonBody, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speak", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("voice error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Nop discards announcements. Used when no voice service is configured.
type Nop struct{}

func (Nop) Announce(context.Context, string) error { return nil }
