// Package restapi is the client for the review session's REST
// collaborator: session lifecycle, recovery probes, and transport token
// issuance.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to the session API at a fixed base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a session API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ListDecks returns all decks with their card counts, sorted by the
// server (largest first).
func (c *Client) ListDecks(ctx context.Context) ([]DeckInfo, error) {
	var resp decksResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/decks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Decks, nil
}

// StartSession creates a new review session for the named deck and
// returns its id and full card list.
func (c *Client) StartSession(ctx context.Context, deckName string) (*StartSessionResponse, error) {
	var resp StartSessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/session/start", startSessionRequest{DeckName: deckName}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EndSession ends the session and syncs its ratings, returning the final
// stats.
func (c *Client) EndSession(ctx context.Context, sessionID string) (*EndSessionResponse, error) {
	var resp EndSessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/session/end", endSessionRequest{SessionID: sessionID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionExists probes for an active session without fetching it. The
// probe exists so the common no-session case produces no error noise.
func (c *Client) SessionExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/api/session/current", nil)
	if err != nil {
		return false, fmt.Errorf("failed to build session probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("session probe failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	}
	return false, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}

// CurrentSession fetches the active session's detail. A not-found answer
// surfaces as an APIError satisfying IsNotFound.
func (c *Client) CurrentSession(ctx context.Context) (*CurrentSessionResponse, error) {
	var resp CurrentSessionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/session/current", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForceEndSessions is the administrative override that clears any active
// sessions server-side.
func (c *Client) ForceEndSessions(ctx context.Context) (*ForceEndResponse, error) {
	var resp ForceEndResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/session/force-end", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IssueToken requests a transport access token for the given room and
// participant identity.
func (c *Client) IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/livekit/token", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}
