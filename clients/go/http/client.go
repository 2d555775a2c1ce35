// Package http provides an HTTP client for the switchboard feature flag
// service.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	switchboard "github.com/matt-riley/switchboard/clients/go"
)

// Config holds configuration for the HTTP client.
type Config struct {
	// BaseURL is the base URL of the switchboard server, e.g. "http://localhost:8080".
	BaseURL string
	// SDKKey is the project SDK key sent in the X-SDK-Key header.
	SDKKey string
	// HTTPClient is optional; defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client implements switchboard.Evaluator over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPClient returns a new HTTP client for the switchboard service.
func NewHTTPClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: hc}
}

// -- wire types --------------------------------------------------------------

type wireEvaluateReq struct {
	Environment string                  `json:"environment"`
	Context     switchboard.UserContext `json:"context"`
}

type wireEvaluateResp struct {
	Flags map[string]switchboard.Result `json:"flags"`
}

// -- helpers -----------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("switchboard: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("switchboard: create request: %w", err)
	}
	req.Header.Set("X-SDK-Key", c.cfg.SDKKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("switchboard: http: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

// APIError is returned when the server responds with an HTTP error status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("switchboard: HTTP %d: %s", e.StatusCode, e.Message)
}

// -- Evaluator ---------------------------------------------------------------

// Evaluate resolves every flag in the named environment for the given user
// context. The map is keyed by flag key.
func (c *Client) Evaluate(ctx context.Context, environment string, user switchboard.UserContext) (map[string]switchboard.Result, error) {
	body := wireEvaluateReq{Environment: environment, Context: user}
	resp, err := c.do(ctx, http.MethodPost, "/v1/sdk/evaluate", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out wireEvaluateResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("switchboard: decode response: %w", err)
	}
	return out.Flags, nil
}

// IsEnabled evaluates the named environment and reports whether a single flag
// is on. Unknown flags resolve to fallback.
func (c *Client) IsEnabled(ctx context.Context, environment, flagKey string, user switchboard.UserContext, fallback bool) (bool, error) {
	flags, err := c.Evaluate(ctx, environment, user)
	if err != nil {
		return fallback, err
	}
	res, ok := flags[flagKey]
	if !ok {
		return fallback, nil
	}
	return res.Enabled, nil
}
