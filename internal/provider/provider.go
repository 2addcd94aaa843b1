// Package provider talks to upstream language model services and streams
// their replies as text deltas.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iksnae/assistant-session/internal"
)

// Message is one role/content pair of a conversation sent upstream
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DeltaFunc receives each text delta of a streamed reply. Returning an error
// stops the stream.
type DeltaFunc func(delta string) error

// Provider streams a completion for a conversation
type Provider interface {
	Name() string
	Stream(ctx context.Context, messages []Message, onDelta DeltaFunc) error
}

// Titler produces a short title for a conversation opener
type Titler interface {
	Title(ctx context.Context, text string) (string, error)
}

// TitlePrompt is the instruction sent to title generators
const TitlePrompt = `Create a short title for a conversation based on this text. The title must be 3-7 words, without quotes and without explanations. Only the title.

Text: "%s"

Title:`

// titleMaxTokens bounds generated titles
const titleMaxTokens = 50

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 * 1024

// APIError represents a non-success response from an upstream provider
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error (status %d)", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Message)
}

// StreamError represents a failure while a reply was being streamed,
// preserving the content received before it
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Option configures the HTTP side of a provider
type Option func(*options)

type options struct {
	client *http.Client
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithTimeout sets an overall timeout on the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.client = &http.Client{Timeout: d}
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{client: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// readAPIError turns a non-success response into an APIError
func readAPIError(provider string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg, ok := internal.ExtractErrorDetail(body)
	if !ok {
		msg = strings.TrimSpace(string(body))
	}
	return &APIError{Provider: provider, Status: resp.StatusCode, Message: msg}
}

// postJSON sends payload as a JSON POST
func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}, headers map[string]string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// FromTurns converts stored turns to upstream messages
func FromTurns(turns []internal.Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, Message{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

// PrependSystem prepends a system message unless prompt is blank
func PrependSystem(prompt string, messages []Message) []Message {
	if strings.TrimSpace(prompt) == "" {
		return messages
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: string(internal.RoleSystem), Content: prompt})
	return append(out, messages...)
}

// titleRequest builds the user message asking for a title
func titleRequest(text string) string {
	return fmt.Sprintf(TitlePrompt, text)
}
