// Package remote is the client of the managed Bookyo backend: the GraphQL
// data API, the auth service and push-style subscriptions.
//
// All failures are classified here, at the point of origin: transport
// failures become NETWORK_ERROR, an error-bearing GraphQL response becomes
// REMOTE_ERROR and is never treated as a silently-empty success.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bookyo/client/internal/errors"
)

// TokenSource supplies the current auth token, empty when signed out.
type TokenSource func() string

// Client executes GraphQL operations against the data API endpoint.
type Client struct {
	endpoint   string
	realtime   string
	apiKey     string
	token      TokenSource
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for queries and mutations.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource attaches an auth token source; the token is sent as the
// Authorization header on every operation when present.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) { c.token = ts }
}

// WithRealtimeEndpoint sets the websocket endpoint used for subscriptions.
// Defaults to the API endpoint with the scheme swapped to ws/wss.
func WithRealtimeEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.realtime = endpoint }
}

// NewClient creates a data API client.
func NewClient(endpoint, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.realtime == "" {
		c.realtime = deriveRealtimeEndpoint(c.endpoint)
	}
	return c
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// Execute runs a GraphQL document and unmarshals the data payload into out.
// out may be nil when the caller does not need the response.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport("failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrRemote,
			fmt.Sprintf("API responded with status %d: %s", resp.StatusCode, truncate(respBody, 512)))
	}

	var gresp gqlResponse
	if err := json.Unmarshal(respBody, &gresp); err != nil {
		return errors.Wrap(errors.ErrRemote, "failed to parse response", err)
	}

	// An error-bearing response is a failure, never an empty success.
	if len(gresp.Errors) > 0 {
		msgs := make([]string, len(gresp.Errors))
		for i, e := range gresp.Errors {
			msgs[i] = e.Message
		}
		return errors.New(errors.ErrRemote, strings.Join(msgs, ", "))
	}

	if out != nil {
		if err := json.Unmarshal(gresp.Data, out); err != nil {
			return errors.Wrap(errors.ErrRemote, "failed to decode data payload", err)
		}
	}

	return nil
}

func (c *Client) setAuthHeaders(h http.Header) {
	if c.apiKey != "" {
		h.Set("x-api-key", c.apiKey)
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			h.Set("Authorization", tok)
		}
	}
}

// classifyTransport tags a transport-level failure as network or unknown.
func classifyTransport(message string, err error) *errors.AppError {
	if isNetworkError(err) {
		return errors.Wrap(errors.ErrNetwork, message, err)
	}
	return errors.Wrap(errors.ErrUnknown, message, err)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		// url.Error wraps the transport failure; a timeout or a wrapped
		// net error both count as connectivity problems.
		if urlErr.Timeout() {
			return true
		}
		return isNetworkError(urlErr.Err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func deriveRealtimeEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
