package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iksnae/assistant-session/internal"
)

// OpenAI streams chat completions from an OpenAI compatible API
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAI creates an OpenAI provider
func NewOpenAI(apiKey, baseURL, model string, opts ...Option) *OpenAI {
	o := buildOptions(opts)
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  o.client,
	}
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Name returns the provider name
func (p *OpenAI) Name() string {
	return "openai"
}

func (p *OpenAI) headers(stream bool) map[string]string {
	h := map[string]string{}
	if p.apiKey != "" {
		h["Authorization"] = "Bearer " + p.apiKey
	}
	if stream {
		h["Accept"] = "text/event-stream"
		h["Cache-Control"] = "no-cache"
	}
	return h
}

// Stream sends messages to the chat completions endpoint and calls onDelta
// for every content delta
func (p *OpenAI) Stream(ctx context.Context, messages []Message, onDelta DeltaFunc) error {
	req := chatRequest{Model: p.model, Messages: messages, Stream: true}
	resp, err := postJSON(ctx, p.client, p.baseURL+"/chat/completions", req, p.headers(true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(p.Name(), resp)
	}

	events := NewSSEReader(resp.Body)
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
			var apiErr *APIError
			if errors.As(err, &apiErr) && received.Len() == 0 {
				apiErr.Status = resp.StatusCode
				return apiErr
			}
			return &StreamError{Partial: received.String(), Err: err}
		}
		received.WriteString(text)
		if err := onDelta(text); err != nil {
			return err
		}
	}
}

// Title asks the model for a short title with a non-streaming completion
func (p *OpenAI) Title(ctx context.Context, text string) (string, error) {
	req := chatRequest{
		Model:     p.model,
		Messages:  []Message{{Role: string(internal.RoleUser), Content: titleRequest(text)}},
		MaxTokens: titleMaxTokens,
	}
	resp, err := postJSON(ctx, p.client, p.baseURL+"/chat/completions", req, p.headers(false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readAPIError(p.Name(), resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode title response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("title response has no choices")
	}
	title := internal.ClampTitle(out.Choices[0].Message.Content, internal.GeneratedTitleMaxLength)
	if title == "" {
		return "", fmt.Errorf("title response is empty")
	}
	return title, nil
}
