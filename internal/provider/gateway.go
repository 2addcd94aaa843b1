package provider

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/iksnae/assistant-session/internal"
)

// Gateway serves chat exchanges in-process by calling a provider directly
type Gateway struct {
	provider     Provider
	systemPrompt string
}

// NewGateway creates an in-process gateway. A non-blank systemPrompt is sent
// ahead of every conversation.
func NewGateway(p Provider, systemPrompt string) *Gateway {
	return &Gateway{provider: p, systemPrompt: systemPrompt}
}

// Send starts the provider stream and returns once the first delta arrives
// or the provider fails. Failures before the first delta are reported as an
// error reply or a transport error; later failures surface as read errors on
// the reply stream.
func (g *Gateway) Send(ctx context.Context, turns []internal.Turn) (internal.Reply, error) {
	messages := PrependSystem(g.systemPrompt, FromTurns(turns))

	pr, pw := io.Pipe()
	started := make(chan struct{})
	done := make(chan error, 1)
	var once sync.Once
	emitted := false

	go func() {
		err := g.provider.Stream(ctx, messages, func(delta string) error {
			once.Do(func() {
				emitted = true
				close(started)
			})
			_, werr := io.WriteString(pw, delta)
			return werr
		})
		pw.CloseWithError(err)
		done <- err
	}()

	select {
	case <-started:
		return internal.PlainText(pr), nil
	case err := <-done:
		if emitted {
			return internal.PlainText(pr), nil
		}
		pr.Close()
		return g.failure(ctx, err)
	}
}

func (g *Gateway) failure(ctx context.Context, err error) (internal.Reply, error) {
	if err == nil {
		return internal.StructuredReply(""), nil
	}
	if ctx.Err() != nil {
		return internal.Reply{}, ctx.Err()
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return internal.ErrorReply(apiErr.Status, apiErr.Message), nil
	}
	return internal.Reply{}, &internal.GatewayError{Endpoint: g.provider.Name(), Err: err}
}

// TitleGenerator adapts a Titler to the accumulator's title hook
type TitleGenerator struct {
	titler Titler
}

// NewTitleGenerator wraps t
func NewTitleGenerator(t Titler) *TitleGenerator {
	return &TitleGenerator{titler: t}
}

// GenerateTitle implements internal.Titler
func (g *TitleGenerator) GenerateTitle(ctx context.Context, firstUserMessage string) (string, error) {
	if strings.TrimSpace(firstUserMessage) == "" {
		return "", errors.New("nothing to title")
	}
	return g.titler.Title(ctx, firstUserMessage)
}
