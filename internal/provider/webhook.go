package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/iksnae/assistant-session/internal"
)

// Webhook forwards conversations to a workflow webhook that replies with
// plain text, an event stream or a JSON document
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook provider
func NewWebhook(url string, opts ...Option) *Webhook {
	o := buildOptions(opts)
	return &Webhook{url: url, client: o.client}
}

type webhookRequest struct {
	Messages []Message `json:"messages"`
	Message  string    `json:"message"`
}

// Name returns the provider name
func (p *Webhook) Name() string {
	return "webhook"
}

// Stream posts the conversation and relays the reply
func (p *Webhook) Stream(ctx context.Context, messages []Message, onDelta DeltaFunc) error {
	req := webhookRequest{Messages: messages, Message: lastUserMessage(messages)}
	resp, err := postJSON(ctx, p.client, p.url, req, map[string]string{
		"Accept": "text/event-stream, text/plain, application/json",
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(p.Name(), resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return p.relayDocument(resp.Body, onDelta)
	case "text/event-stream":
		return p.relayEvents(ctx, resp.Body, onDelta)
	}
	return p.relayText(ctx, resp.Body, onDelta)
}

func (p *Webhook) relayDocument(body io.Reader, onDelta DeltaFunc) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return &StreamError{Err: fmt.Errorf("failed to read reply: %w", err)}
	}
	if detail, ok := internal.ExtractErrorDetail(data); ok {
		return &APIError{Provider: p.Name(), Status: http.StatusOK, Message: detail}
	}
	text, ok := internal.ExtractReplyText(data)
	if !ok {
		text = string(data)
	}
	if text == "" {
		return nil
	}
	return onDelta(text)
}

func (p *Webhook) relayEvents(ctx context.Context, body io.Reader, onDelta DeltaFunc) error {
	events := NewSSEReader(body)
	var received strings.Builder
	for {
		text, err := nextDelta(events, p.Name())
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &StreamError{Partial: received.String(), Err: err}
		}
		received.WriteString(text)
		if err := onDelta(text); err != nil {
			return err
		}
	}
}

func (p *Webhook) relayText(ctx context.Context, body io.Reader, onDelta DeltaFunc) error {
	buf := make([]byte, 4096)
	var received strings.Builder
	for {
		n, err := body.Read(buf)
		if n > 0 {
			received.Write(buf[:n])
			if cbErr := onDelta(string(buf[:n])); cbErr != nil {
				return cbErr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &StreamError{Partial: received.String(), Err: err}
		}
	}
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == string(internal.RoleUser) {
			return messages[i].Content
		}
	}
	return ""
}
