package robot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

// Executor is the robot-side consumer of motion programs, stop signals, and speed values
type Executor interface {
	// ReplaceProgram replaces the robot's current motion program
	ReplaceProgram(ctx context.Context, commands []routing.Command) error
	// Stop halts any motion in flight
	Stop(ctx context.Context) error
	// SetSpeed sets the drive speed on a 0-100 scale
	SetSpeed(ctx context.Context, speed int) error
}

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the command executor running on the robot over HTTP
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new executor client with a short request timeout
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

type programRequest struct {
	Commands []routing.Command `json:"commands"`
}

type speedRequest struct {
	Speed int `json:"speed"`
}

// ReplaceProgram posts the command list to the robot's /route endpoint
func (c *Client) ReplaceProgram(ctx context.Context, commands []routing.Command) error {
	if commands == nil {
		commands = []routing.Command{}
	}
	return c.post(ctx, "/route", programRequest{Commands: commands})
}

// Stop posts to the robot's /stop endpoint
func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop", struct{}{})
}

// SetSpeed posts the speed, clamped to 0-100, to the robot's /speed endpoint
func (c *Client) SetSpeed(ctx context.Context, speed int) error {
	return c.post(ctx, "/speed", speedRequest{Speed: ClampSpeed(speed)})
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
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
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("robot error %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// ClampSpeed bounds a speed to the executor's 0-100 scale
func ClampSpeed(speed int) int {
	if speed < 0 {
		return 0
	}
	if speed > 100 {
		return 100
	}
	return speed
}
