// Package gateway is the HTTP client side of the chat gateway: it posts a
// conversation to a remote endpoint and resolves the response into a reply.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/iksnae/assistant-session/internal"
	"github.com/iksnae/assistant-session/internal/provider"
)

const (
	// maxErrorBody bounds how much of a failed response is read
	maxErrorBody = 64 * 1024
	// maxDocumentBody bounds whole-document JSON replies
	maxDocumentBody = 4 * 1024 * 1024
)

// Client sends conversations to a chat gateway endpoint
type Client struct {
	endpoint string
	http     *http.Client
}

// Option configures a Client or TitleClient
type Option func(*http.Client) *http.Client

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(current *http.Client) *http.Client {
		if c == nil {
			return current
		}
		return c
	}
}

// WithTimeout bounds each request including reading the reply
func WithTimeout(d time.Duration) Option {
	return func(current *http.Client) *http.Client {
		if d <= 0 {
			return current
		}
		c := *current
		c.Timeout = d
		return &c
	}
}

func newHTTPClient(opts []Option) *http.Client {
	c := &http.Client{}
	for _, opt := range opts {
		c = opt(c)
	}
	return c
}

// NewClient creates a gateway client for endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	return &Client{endpoint: endpoint, http: newHTTPClient(opts)}
}

// Endpoint returns the configured URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

type chatRequest struct {
	Messages []internal.Turn `json:"messages"`
}

// Send posts the conversation. Transport failures are returned as
// *internal.GatewayError; every HTTP response is resolved into a Reply.
func (c *Client) Send(ctx context.Context, turns []internal.Turn) (internal.Reply, error) {
	if turns == nil {
		turns = []internal.Turn{}
	}
	resp, err := c.post(ctx, chatRequest{Messages: turns}, "text/plain, text/event-stream, application/json")
	if err != nil {
		return internal.Reply{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return internal.ErrorReply(resp.StatusCode, errorDetail(resp.Body)), nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		defer resp.Body.Close()
		return c.document(resp.Body)
	case "text/event-stream":
		return internal.PlainText(provider.NewDeltaReader(resp.Body, "gateway")), nil
	}
	return internal.PlainText(resp.Body), nil
}

func (c *Client) document(body io.Reader) (internal.Reply, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBody))
	if err != nil {
		return internal.Reply{}, &internal.GatewayError{Endpoint: c.endpoint, Err: fmt.Errorf("failed to read reply: %w", err)}
	}
	if detail, ok := internal.ExtractErrorDetail(data); ok {
		return internal.ErrorReply(0, detail), nil
	}
	if text, ok := internal.ExtractReplyText(data); ok {
		return internal.StructuredReply(text), nil
	}
	return internal.StructuredReply(string(data)), nil
}

func (c *Client) post(ctx context.Context, payload interface{}, accept string) (*http.Response, error) {
	return post(ctx, c.http, c.endpoint, payload, accept)
}

func post(ctx context.Context, client *http.Client, endpoint string, payload interface{}, accept string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &internal.GatewayError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &internal.GatewayError{Endpoint: endpoint, Err: err}
	}
	return resp, nil
}

// errorDetail reads a bounded error body, unwrapping JSON error documents
func errorDetail(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if detail, ok := internal.ExtractErrorDetail(data); ok {
		return detail
	}
	return strings.TrimSpace(string(data))
}

// TitleClient asks a title endpoint to name a conversation
type TitleClient struct {
	endpoint string
	http     *http.Client
}

// NewTitleClient creates a title client for endpoint
func NewTitleClient(endpoint string, opts ...Option) *TitleClient {
	return &TitleClient{endpoint: endpoint, http: newHTTPClient(opts)}
}

type titleResponse struct {
	Title string `json:"title"`
}

// GenerateTitle implements internal.Titler
func (c *TitleClient) GenerateTitle(ctx context.Context, firstUserMessage string) (string, error) {
	payload := chatRequest{Messages: []internal.Turn{{Role: internal.RoleUser, Content: firstUserMessage}}}
	resp, err := post(ctx, c.http, c.endpoint, payload, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &internal.UpstreamError{Status: resp.StatusCode, Detail: errorDetail(resp.Body)}
	}

	var out titleResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode title response: %w", err)
	}
	title := strings.TrimSpace(out.Title)
	if title == "" {
		return "", errors.New("title response is empty")
	}
	return title, nil
}
