package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/iksnae/assistant-session/internal"
)

// Anthropic generates titles through the Messages API
type Anthropic struct {
	apiKey  string
	baseURL string
	model   string
	version string
	client  *http.Client
}

// NewAnthropic creates an Anthropic title generator
func NewAnthropic(apiKey, baseURL, model, version string, opts ...Option) *Anthropic {
	o := buildOptions(opts)
	return &Anthropic{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		version: version,
		client:  o.client,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Name returns the provider name
func (p *Anthropic) Name() string {
	return "anthropic"
}

// Title asks the model for a 3-7 word title, clamped to
// internal.GeneratedTitleMaxLength grapheme clusters
func (p *Anthropic) Title(ctx context.Context, text string) (string, error) {
	req := messagesRequest{
		Model:     p.model,
		MaxTokens: titleMaxTokens,
		Messages:  []Message{{Role: string(internal.RoleUser), Content: titleRequest(text)}},
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": p.version,
	}

	resp, err := postJSON(ctx, p.client, p.baseURL+"/v1/messages", req, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readAPIError(p.Name(), resp)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode title response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		if title := internal.ClampTitle(block.Text, internal.GeneratedTitleMaxLength); title != "" {
			return title, nil
		}
	}
	return "", fmt.Errorf("title response has no text content")
}
