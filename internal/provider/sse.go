package provider

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// MaxEventSize is the largest accepted SSE line
const MaxEventSize = 64 * 1024

var doneMarker = []byte("[DONE]")

// SSEReader parses Server-Sent Events from a stream
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReaderSize(r, 4096)}
}

// ReadEvent reads the next SSE event. Multiple data lines are joined with a
// newline; comments and id/retry fields are ignored. It returns io.EOF when
// the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", nil, err
		}
		eof := errors.Is(err, io.EOF)

		size += len(line)
		if size > MaxEventSize {
			return "", nil, errors.New("sse event exceeds maximum size")
		}

		line = bytes.TrimRight(line, "\r\n")
		switch {
		case len(line) == 0:
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			size = 0
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := line[5:]
			if len(data) > 0 && data[0] == ' ' {
				data = data[1:]
			}
			dataLines = append(dataLines, data)
		}

		if eof {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			return "", nil, io.EOF
		}
	}
}

// streamChunk is one OpenAI-style chat completion chunk
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *streamChunk) content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	if c.Choices[0].Delta.Content != "" {
		return c.Choices[0].Delta.Content
	}
	return c.Choices[0].Text
}

func (c *streamChunk) err(provider string) error {
	if c.Error == nil {
		return nil
	}
	msg := c.Error.Message
	if msg == "" {
		msg = c.Error.Type
	}
	return &APIError{Provider: provider, Message: msg}
}

// nextDelta reads events until one carries text. It returns io.EOF at the end
// of the stream or on the [DONE] marker. Malformed chunks are skipped.
func nextDelta(r *SSEReader, provider string) (string, error) {
	for {
		_, data, err := r.ReadEvent()
		if err != nil {
			return "", err
		}
		if bytes.Equal(bytes.TrimSpace(data), doneMarker) {
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}
		if err := chunk.err(provider); err != nil {
			return "", err
		}
		if text := chunk.content(); text != "" {
			return text, nil
		}
	}
}

// DeltaReader exposes the text deltas of an OpenAI-style event stream as a
// plain byte stream
type DeltaReader struct {
	body     io.ReadCloser
	events   *SSEReader
	provider string
	pending  []byte
	err      error
}

// NewDeltaReader wraps an event stream body
func NewDeltaReader(body io.ReadCloser, provider string) *DeltaReader {
	return &DeltaReader{body: body, events: NewSSEReader(body), provider: provider}
}

// Read implements io.Reader
func (d *DeltaReader) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		text, err := nextDelta(d.events, d.provider)
		if err != nil {
			d.err = err
			continue
		}
		d.pending = []byte(text)
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// Close closes the underlying body
func (d *DeltaReader) Close() error {
	return d.body.Close()
}
