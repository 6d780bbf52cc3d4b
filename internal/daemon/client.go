package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// clientBaseURL is a placeholder host; the transport always dials the socket.
const clientBaseURL = "http://focusmode"

// Client talks to a running supervisor over its control socket.
// Connection failures wrap domain.ErrSupervisorUnavailable.
type Client struct {
	http       *http.Client
	socketPath string
}

// NewClient creates a client with a per-request timeout.
func NewClient(socketPath string, timeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		DisableKeepAlives: true,
	}
	return &Client{
		http:       &http.Client{Transport: transport, Timeout: timeout},
		socketPath: socketPath,
	}
}

// Health succeeds when a supervisor answers.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	_, err := c.do(ctx, http.MethodGet, RouteHealthz, nil, &out)
	return err
}

// Status returns the supervisor's status view.
func (c *Client) Status(ctx context.Context) (domain.Status, error) {
	var st domain.Status
	_, err := c.do(ctx, http.MethodGet, RouteStatus, nil, &st)
	return st, err
}

// Activate asks the supervisor to activate mode. A mode_not_found outcome is
// returned as a result, not an error.
func (c *Client) Activate(ctx context.Context, mode string, opts domain.ActivationOptions) (domain.ActivationResult, error) {
	var res domain.ActivationResult
	_, err := c.do(ctx, http.MethodPost, RouteActivate, ActivateRequest{
		Mode:         mode,
		BlockNetwork: opts.BlockNetwork,
		Monitor:      opts.Monitor,
	}, &res, http.StatusNotFound)
	return res, err
}

// Deactivate asks the supervisor to tear down and exit.
func (c *Client) Deactivate(ctx context.Context) (domain.DeactivationReport, error) {
	var report domain.DeactivationReport
	_, err := c.do(ctx, http.MethodPost, RouteDeactivate, nil, &report)
	return report, err
}

// do sends a request and decodes a 2xx response (or one of accept) into out.
func (c *Client) do(ctx context.Context, method, route string, body, out any, accept ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, clientBaseURL+route, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrSupervisorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || containsStatus(accept, resp.StatusCode) {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", route, err)
		}
		return resp.StatusCode, nil
	}

	var apiErr APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
		return resp.StatusCode, fmt.Errorf("%s %s: unexpected status %d", method, route, resp.StatusCode)
	}
	return resp.StatusCode, fmt.Errorf("%s %s: %s", method, route, apiErr.Error)
}

func containsStatus(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
