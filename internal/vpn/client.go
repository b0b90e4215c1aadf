// Package vpn drives gluetun control servers: per-instance reconnects with
// bounded retries, server rotation and fleet-wide status.
package vpn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one gluetun control server over its HTTP API.
type Client struct {
	BaseURL  string
	Username string
	Password string
	HTTP     *http.Client
}

// NewClient builds a client for a control server on localhost.
func NewClient(controlPort int, username, password string) *Client {
	return &Client{
		BaseURL:  fmt.Sprintf("http://localhost:%d", controlPort),
		Username: username,
		Password: password,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

// VPN tunnel statuses reported and accepted by the control server.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// Status returns the tunnel status, e.g. "running".
func (c *Client) Status(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/vpn/status", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// SetStatus transitions the tunnel to the given status.
func (c *Client) SetStatus(ctx context.Context, status string) error {
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPut, "/v1/vpn/status", body, nil)
}

// PublicIP returns the current egress IP as seen by the tunnel.
func (c *Client) PublicIP(ctx context.Context) (string, error) {
	var out struct {
		PublicIP string `json:"public_ip"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/publicip/ip", nil, &out); err != nil {
		return "", err
	}
	return out.PublicIP, nil
}

// SetCountries repoints the provider's server selection. Takes effect on the
// next tunnel restart.
func (c *Client) SetCountries(ctx context.Context, provider string, countries []string) error {
	body := map[string]any{
		"vpn": map[string]any{
			"provider": map[string]any{
				"name": provider,
				"server_selection": map[string]any{
					"countries": countries,
				},
			},
		},
	}
	return c.do(ctx, http.MethodPut, "/v1/settings", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("vpn: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("vpn: build %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(c.Username, c.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vpn: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("vpn: %s %s: control server returned %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("vpn: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
