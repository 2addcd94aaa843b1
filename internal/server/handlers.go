package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/iksnae/assistant-session/internal"
	"github.com/iksnae/assistant-session/internal/provider"
)

// maxRequestBody bounds request bodies
const maxRequestBody = 1 << 20

// ChatRequest is the body of POST /api/chat. Either Messages, or History
// plus Message, carries the conversation.
type ChatRequest struct {
	Messages []provider.Message `json:"messages,omitempty"`
	History  []provider.Message `json:"history,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// conversation returns the messages to send upstream, without the system
// prompt. Entries with an unknown role or no content are dropped.
func (r ChatRequest) conversation() []provider.Message {
	source := r.Messages
	if len(source) == 0 {
		source = r.History
	}

	msgs := make([]provider.Message, 0, len(source)+1)
	for _, m := range source {
		role := internal.Role(m.Role)
		if !role.Valid() || role == internal.RoleSystem || m.Content == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	if len(r.Messages) == 0 && r.Message != "" {
		msgs = append(msgs, provider.Message{Role: string(internal.RoleUser), Content: r.Message})
	}
	return msgs
}

// TitleRequest is the body of POST /api/generate-title
type TitleRequest struct {
	Messages []provider.Message `json:"messages"`
}

// TitleResponse is the reply of POST /api/generate-title
type TitleResponse struct {
	Title string `json:"title"`
}

// HealthResponse is the reply of GET /health
type HealthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
	Titles    bool     `json:"titles"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var names []string
	if f, ok := s.provider.(*provider.Fallback); ok {
		names = f.Providers()
	} else if s.provider != nil {
		names = []string{s.provider.Name()}
	}
	if names == nil {
		names = []string{}
	}
	jsonResponse(w, http.StatusOK, HealthResponse{Status: "ok", Providers: names, Titles: s.titler != nil})
}

// handleChat streams the provider reply as plain text. A failure before the
// first byte is reported as a 500; after that the stream is simply closed.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msgs := req.conversation()
	if len(msgs) == 0 {
		jsonError(w, http.StatusBadRequest, "no messages")
		return
	}
	msgs = provider.PrependSystem(s.cfg.SystemPrompt, msgs)

	flusher, _ := w.(http.Flusher)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
	}

	err := s.provider.Stream(r.Context(), msgs, func(delta string) error {
		start()
		if _, err := io.WriteString(w, delta); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err == nil {
		start()
		return
	}
	if r.Context().Err() != nil {
		internal.LogDebug("Chat request cancelled by client: %v", err)
		return
	}
	if started {
		internal.LogWarn("Chat stream failed after reply started: %v", err)
		return
	}

	internal.LogError("Chat request failed: %v", err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, ChatFailureMessage)
}

// handleGenerateTitle always answers with a title: the default one when
// there is nothing to name, the opening text when generation fails
func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		internal.LogDebug("Invalid title request: %v", err)
		jsonResponse(w, http.StatusOK, TitleResponse{Title: internal.DefaultTitle})
		return
	}

	var text string
	for _, m := range req.Messages {
		if m.Role == string(internal.RoleUser) {
			text = m.Content
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		jsonResponse(w, http.StatusOK, TitleResponse{Title: internal.DefaultTitle})
		return
	}

	fallback := internal.ClampTitle(text, internal.GeneratedTitleMaxLength)
	if s.titler == nil {
		jsonResponse(w, http.StatusOK, TitleResponse{Title: fallback})
		return
	}

	title, err := s.titler.Title(r.Context(), text)
	if err != nil {
		internal.LogWarn("Title generation failed: %v", err)
		title = fallback
	}
	title = internal.ClampTitle(title, internal.GeneratedTitleMaxLength)
	if title == "" {
		title = fallback
	}
	jsonResponse(w, http.StatusOK, TitleResponse{Title: title})
}

func jsonResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		internal.LogDebug("Failed to write response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}
