package linear

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/machinebox/graphql"
)

// NewClient creates a client for the remote tracker's GraphQL API.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:   apiKey,
		Endpoint: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithEndpoint returns a copy of the client pointed at a different endpoint.
func (c *Client) WithEndpoint(endpoint string) *Client {
	clone := *c
	clone.Endpoint = endpoint
	return &clone
}

// WithHTTPClient returns a copy of the client using the given HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *c
	clone.HTTPClient = hc
	return &clone
}

// statusTransport converts non-2xx HTTP responses into *APIError before the
// GraphQL layer sees them, so the raw transport status survives into the
// normalized failure shape.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

// httpClient wraps the configured HTTP client with the status-normalizing
// transport, preserving its timeout.
func (c *Client) httpClient() *http.Client {
	base := c.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: DefaultTimeout}
	}
	return &http.Client{
		Timeout:   base.Timeout,
		Transport: &statusTransport{base: base.Transport},
	}
}

// run executes a GraphQL request with authentication and collapses every
// failure into *APIError.
func (c *Client) run(ctx context.Context, op string, req *graphql.Request, resp interface{}) error {
	if c.APIKey == "" {
		return &APIError{Op: op, Message: "api credential not configured"}
	}

	// The graphql library sets the JSON content type on the request itself;
	// adding it here again would duplicate the header on the wire.
	req.Header.Set("Authorization", c.APIKey)

	gql := graphql.NewClient(c.Endpoint, graphql.WithHTTPClient(c.httpClient()))
	if err := gql.Run(ctx, req, resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.Op = op
			return apiErr
		}
		msg := err.Error()
		if rest, ok := strings.CutPrefix(msg, "graphql:"); ok {
			// Application-level error delivered inside a 200 response.
			return &APIError{Op: op, StatusCode: http.StatusOK, Message: strings.TrimSpace(rest)}
		}
		return &APIError{Op: op, Message: msg}
	}
	return nil
}
