// internal/daemon/client.go
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running daemon. The CLI uses it for commands that need
// the daemon's session state.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the daemon listening on addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Health fetches /health. An error usually means the daemon is not running.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// Sanitize sends a URL through the daemon's navigation interceptor.
func (c *Client) Sanitize(ctx context.Context, rawURL, sessionID string) (SanitizeResponse, error) {
	var resp SanitizeResponse
	err := c.do(ctx, http.MethodPost, "/api/sanitize", SanitizeRequest{URL: rawURL, SessionID: sessionID}, &resp)
	return resp, err
}

// Session fetches the display view for a session.
func (c *Client) Session(ctx context.Context, id string) (SessionView, error) {
	var v SessionView
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &v)
	return v, err
}

// Forget ends a session.
func (c *Client) Forget(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
