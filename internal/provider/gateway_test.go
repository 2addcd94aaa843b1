package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/iksnae/assistant-session/internal"
)

// recording captures the messages it was asked to stream
type recording struct {
	scripted
	got []Message
}

func (r *recording) Stream(ctx context.Context, msgs []Message, onDelta DeltaFunc) error {
	r.got = msgs
	return r.scripted.Stream(ctx, msgs, onDelta)
}

func TestGatewaySendStreams(t *testing.T) {
	p := &recording{scripted: scripted{name: "fake", deltas: []string{"Hel", "lo, ", "world!"}}}
	g := NewGateway(p, "You are helpful.")

	turns := []internal.Turn{{Role: internal.RoleUser, Content: "hi"}}
	reply, err := g.Send(context.Background(), turns)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Kind != internal.ReplyPlainText {
		t.Fatalf("Kind = %v, want plain", reply.Kind)
	}
	body, err := io.ReadAll(reply.Stream)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(body) != "Hello, world!" {
		t.Errorf("body = %q", body)
	}
	if len(p.got) != 2 || p.got[0].Role != "system" || p.got[1].Content != "hi" {
		t.Errorf("messages = %+v", p.got)
	}
}

func TestGatewaySendFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   internal.ReplyKind
		status int
		gwErr  bool
	}{
		{"api error", &APIError{Provider: "fake", Status: http.StatusUnauthorized, Message: "bad key"}, internal.ReplyError, http.StatusUnauthorized, false},
		{"transport", errors.New("dial tcp: refused"), 0, 0, true},
		{"nothing emitted", nil, internal.ReplyStructured, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(&scripted{name: "fake", err: tt.err}, "")
			reply, err := g.Send(context.Background(), nil)
			if tt.gwErr {
				var gwErr *internal.GatewayError
				if !errors.As(err, &gwErr) {
					t.Fatalf("Send() error = %v, want *GatewayError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if reply.Kind != tt.kind || reply.Status != tt.status {
				t.Errorf("reply = %+v", reply)
			}
		})
	}
}

func TestGatewayMidStreamFailure(t *testing.T) {
	boom := errors.New("connection reset")
	g := NewGateway(&scripted{name: "fake", deltas: []string{"partial"}, err: boom}, "")
	reply, err := g.Send(context.Background(), nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	body, err := io.ReadAll(reply.Stream)
	if !errors.Is(err, boom) {
		t.Errorf("ReadAll() error = %v, want %v", err, boom)
	}
	if string(body) != "partial" {
		t.Errorf("body = %q", body)
	}
}

func TestGatewayWithAccumulator(t *testing.T) {
	store := internal.NewStore(internal.NewMemoryKV(), internal.WithIDGenerator(internal.SequentialIDs("id")))
	store.Load()

	acc := internal.NewAccumulator(store, NewGateway(&scripted{name: "fake", deltas: []string{"Hel", "lo, ", "world!"}}, ""),
		internal.WithTitler(NewTitleGenerator(fixedTitler{title: "Greeting"})))
	result, err := acc.Submit(context.Background(), store.ActiveID(), "Say hello")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != internal.OutcomeCompleted || result.Content != "Hello, world!" {
		t.Errorf("result = %+v", result)
	}
	if result.Title != "Greeting" {
		t.Errorf("Title = %q, want %q", result.Title, "Greeting")
	}
}

func TestTitleGeneratorRejectsBlank(t *testing.T) {
	g := NewTitleGenerator(fixedTitler{title: "x"})
	if _, err := g.GenerateTitle(context.Background(), "   "); err == nil {
		t.Error("GenerateTitle() error = nil, want error")
	}
}
