package provider

import (
	"context"
	"errors"
	"testing"
)

// scripted is a Provider that emits fixed deltas and then returns err
type scripted struct {
	name   string
	deltas []string
	err    error
	calls  int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Stream(ctx context.Context, _ []Message, onDelta DeltaFunc) error {
	s.calls++
	for _, d := range s.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return s.err
}

func TestFallbackStream(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		providers []*scripted
		want      string
		wantErr   bool
		calls     []int
	}{
		{
			name:      "first succeeds",
			providers: []*scripted{{name: "a", deltas: []string{"A"}}, {name: "b", deltas: []string{"B"}}},
			want:      "A",
			calls:     []int{1, 0},
		},
		{
			name:      "first fails silently",
			providers: []*scripted{{name: "a", err: boom}, {name: "b", deltas: []string{"B"}}},
			want:      "B",
			calls:     []int{1, 1},
		},
		{
			name:      "first fails mid reply",
			providers: []*scripted{{name: "a", deltas: []string{"par"}, err: boom}, {name: "b", deltas: []string{"B"}}},
			want:      "par",
			wantErr:   true,
			calls:     []int{1, 0},
		},
		{
			name:      "all fail",
			providers: []*scripted{{name: "a", err: boom}, {name: "b", err: boom}},
			wantErr:   true,
			calls:     []int{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := make([]Provider, len(tt.providers))
			for i, p := range tt.providers {
				ps[i] = p
			}
			got, err := collect(t, NewFallback(ps...), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Stream() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, boom) {
				t.Errorf("error = %v, want wrapping %v", err, boom)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
			for i, p := range tt.providers {
				if p.calls != tt.calls[i] {
					t.Errorf("provider %s calls = %d, want %d", p.name, p.calls, tt.calls[i])
				}
			}
		})
	}
}

func TestFallbackEmpty(t *testing.T) {
	if _, err := collect(t, NewFallback(nil), nil); !errors.Is(err, ErrNoProviders) {
		t.Errorf("error = %v, want ErrNoProviders", err)
	}
}

func TestFallbackName(t *testing.T) {
	f := NewFallback(&scripted{name: "openai"}, &scripted{name: "webhook"})
	if got := f.Name(); got != "fallback(openai,webhook)" {
		t.Errorf("Name() = %q", got)
	}
}

type fixedTitler struct {
	title string
	err   error
}

func (f fixedTitler) Title(context.Context, string) (string, error) { return f.title, f.err }

func TestFallbackTitler(t *testing.T) {
	boom := errors.New("boom")
	f := NewFallbackTitler(fixedTitler{err: boom}, nil, fixedTitler{title: "Second"})
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}
	title, err := f.Title(context.Background(), "x")
	if err != nil || title != "Second" {
		t.Errorf("Title() = %q, %v", title, err)
	}

	_, err = NewFallbackTitler(fixedTitler{err: boom}).Title(context.Background(), "x")
	if !errors.Is(err, boom) {
		t.Errorf("Title() error = %v, want %v", err, boom)
	}
}
