// Package chat wraps the AI chat companion's outbound calls. The relay
// service itself is an external collaborator; this package only defines
// the request/response contract and the offline-queuing decorator.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// Request is an outbound "ask AI" call.
type Request struct {
	Message string    `json:"message"`
	Context string    `json:"context,omitempty"`
	History []Message `json:"history"`
}

// Response is the relay's answer.
type Response struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client sends a chat request to the AI relay.
type Client interface {
	Ask(ctx context.Context, req *Request) (*Response, error)
}

// HTTPClient is the production Client, POSTing JSON to the relay endpoint.
type HTTPClient struct {
	Endpoint string
	// Inner defaults to http.DefaultClient.
	Inner *http.Client
}

func (c *HTTPClient) client() *http.Client {
	if c.Inner != nil {
		return c.Inner
	}
	return http.DefaultClient
}

// Ask performs the call. Transport failures and non-2xx statuses are
// returned as errors so the offline wrapper can queue the request.
func (c *HTTPClient) Ask(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	hresp, err := c.client().Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()

	if hresp.StatusCode < 200 || hresp.StatusCode >= 300 {
		io.Copy(io.Discard, hresp.Body)
		return nil, fmt.Errorf("relay returned status %d", hresp.StatusCode)
	}

	var resp Response
	if err := json.NewDecoder(hresp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode relay response: %w", err)
	}
	return &resp, nil
}

// Compile-time interface check
var _ Client = (*HTTPClient)(nil)
