package internal

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// ReplyKind tags the shape of a gateway reply
type ReplyKind int

const (
	// ReplyPlainText carries an incremental text stream
	ReplyPlainText ReplyKind = iota
	// ReplyStructured carries a complete reply extracted from a JSON body
	ReplyStructured
	// ReplyError carries an upstream failure
	ReplyError
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyPlainText:
		return "plain"
	case ReplyStructured:
		return "structured"
	case ReplyError:
		return "error"
	}
	return "unknown"
}

// Reply is the response of a chat gateway, resolved once at the boundary
type Reply struct {
	Kind   ReplyKind
	Stream io.ReadCloser // ReplyPlainText
	Text   string        // ReplyStructured
	Status int           // ReplyError, 0 when not an HTTP status
	Detail string        // ReplyError
}

// PlainText wraps a streamed reply body
func PlainText(stream io.ReadCloser) Reply {
	return Reply{Kind: ReplyPlainText, Stream: stream}
}

// StructuredReply wraps a reply that arrived as a whole document
func StructuredReply(text string) Reply {
	return Reply{Kind: ReplyStructured, Text: text}
}

// ErrorReply wraps an upstream failure
func ErrorReply(status int, detail string) Reply {
	return Reply{Kind: ReplyError, Status: status, Detail: detail}
}

// ReplyFields is the ordered list of fields probed for reply text
var ReplyFields = []string{"content", "reply", "answer", "text", "message", "output"}

// ExtractReplyText probes a JSON document for reply text. It understands flat
// objects keyed by one of ReplyFields, Anthropic content blocks, OpenAI
// choices and a top-level array whose first element is an object of one of
// those shapes. Bare strings and arrays of scalars are not replies.
func ExtractReplyText(data []byte) (string, bool) {
	var doc interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return "", false
	}
	return replyFromValue(doc, 0)
}

func replyFromValue(v interface{}, depth int) (string, bool) {
	if depth > 3 {
		return "", false
	}

	switch val := v.(type) {
	case []interface{}:
		if len(val) == 0 {
			return "", false
		}
		if text, ok := textBlocks(val); ok {
			return text, true
		}
		if first, ok := val[0].(map[string]interface{}); ok {
			return replyFromValue(first, depth+1)
		}
	case map[string]interface{}:
		for _, field := range ReplyFields {
			if field == "message" {
				// {"message": {"content": "..."}} as well as {"message": "..."}
				if inner, ok := val[field].(map[string]interface{}); ok {
					if text, ok := replyFromValue(inner, depth+1); ok {
						return text, true
					}
					continue
				}
			}
			switch fv := val[field].(type) {
			case string:
				return fv, true
			case []interface{}:
				if text, ok := textBlocks(fv); ok {
					return text, true
				}
			}
		}
		if choices, ok := val["choices"].([]interface{}); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]interface{}); ok {
				for _, key := range []string{"message", "delta"} {
					if inner, ok := choice[key].(map[string]interface{}); ok {
						if text, ok := inner["content"].(string); ok {
							return text, true
						}
					}
				}
				if text, ok := choice["text"].(string); ok {
					return text, true
				}
			}
		}
	}
	return "", false
}

// textBlocks joins the text of Anthropic style content blocks
func textBlocks(blocks []interface{}) (string, bool) {
	var sb strings.Builder
	found := false
	for _, b := range blocks {
		block, ok := b.(map[string]interface{})
		if !ok {
			return "", false
		}
		if text, ok := block["text"].(string); ok {
			sb.WriteString(text)
			found = true
		}
	}
	return sb.String(), found
}

// ExtractErrorDetail recognizes JSON error documents such as
// {"error":"..."}, {"error":{"message":"..."}} and {"detail":"..."}
func ExtractErrorDetail(data []byte) (string, bool) {
	var doc map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return "", false
	}

	switch e := doc["error"].(type) {
	case string:
		if e != "" {
			return e, true
		}
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg, true
		}
		if typ, ok := e["type"].(string); ok && typ != "" {
			return typ, true
		}
	}
	if detail, ok := doc["detail"].(string); ok && detail != "" {
		if _, hasReply := replyFromValue(doc, 0); !hasReply {
			return detail, true
		}
	}
	return "", false
}

// looksLikeJSON reports whether text is plausibly a whole JSON document
func looksLikeJSON(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 2 {
		return false
	}
	first, last := text[0], text[len(text)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}
