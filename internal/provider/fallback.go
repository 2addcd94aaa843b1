package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iksnae/assistant-session/internal"
)

// ErrNoProviders is returned when a chain has nothing to call
var ErrNoProviders = errors.New("no providers configured")

// Fallback tries providers in order. A provider that fails after emitting
// text ends the chain, since its partial reply has already been delivered.
type Fallback struct {
	providers []Provider
}

// NewFallback creates a fallback chain, skipping nil providers
func NewFallback(providers ...Provider) *Fallback {
	f := &Fallback{}
	for _, p := range providers {
		if p != nil {
			f.providers = append(f.providers, p)
		}
	}
	return f
}

// Providers returns the names of the chained providers
func (f *Fallback) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return names
}

// Name returns the provider name
func (f *Fallback) Name() string {
	return "fallback(" + strings.Join(f.Providers(), ",") + ")"
}

// Stream calls each provider until one succeeds or one fails mid-reply
func (f *Fallback) Stream(ctx context.Context, messages []Message, onDelta DeltaFunc) error {
	if len(f.providers) == 0 {
		return ErrNoProviders
	}

	var errs []error
	for _, p := range f.providers {
		emitted := false
		err := p.Stream(ctx, messages, func(delta string) error {
			emitted = true
			return onDelta(delta)
		})
		if err == nil {
			return nil
		}
		if emitted || ctx.Err() != nil {
			return err
		}
		internal.LogWarn("Provider %s failed, trying next: %v", p.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return errors.Join(errs...)
}

// FallbackTitler tries title generators in order
type FallbackTitler struct {
	titlers []Titler
}

// NewFallbackTitler creates a title generator chain, skipping nil entries
func NewFallbackTitler(titlers ...Titler) *FallbackTitler {
	f := &FallbackTitler{}
	for _, t := range titlers {
		if t != nil {
			f.titlers = append(f.titlers, t)
		}
	}
	return f
}

// Len returns the number of chained title generators
func (f *FallbackTitler) Len() int {
	return len(f.titlers)
}

// Title returns the first title produced by the chain
func (f *FallbackTitler) Title(ctx context.Context, text string) (string, error) {
	if len(f.titlers) == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for _, t := range f.titlers {
		title, err := t.Title(ctx, text)
		if err == nil {
			return title, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}
