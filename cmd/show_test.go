package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rivo/uniseg"

	"github.com/iksnae/assistant-session/internal"
)

func TestShowCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    []string
		notWant []string
	}{
		{
			name: "active session",
			args: []string{"show", "--raw"},
			want: []string{"Quantum tunneling", "Explain quantum tunneling", "Particles can cross barriers.", "[1/2]", "[2/2]"},
		},
		{
			name:    "by id",
			args:    []string{"show", "session-2", "--raw"},
			want:    []string{"Recipes", "Suggest a pasta recipe"},
			notWant: []string{"Quantum tunneling"},
		},
		{
			name: "with limit",
			args: []string{"show", "--raw", "--limit", "1"},
			want: []string{"Explain quantum tunneling", "(1 more message(s))"},
		},
		{
			name:    "with since",
			args:    []string{"show", "--raw", "--since", "2025-01-02T10:00:03Z"},
			want:    []string{"Particles can cross barriers.", "[1/1]"},
			notWant: []string{"Explain quantum tunneling"},
		},
		{
			name: "rendered markdown",
			args: []string{"show"},
			want: []string{"Quantum tunneling", "Explain quantum tunneling"},
		},
		{
			name:    "invalid since",
			args:    []string{"show", "--since", "yesterday"},
			wantErr: true,
		},
		{
			name:    "unknown session",
			args:    []string{"show", "nope"},
			wantErr: true,
		},
		{
			name:    "too many args",
			args:    []string{"show", "a", "b"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			args := append([]string{"--storage", seededDB(t, dir)}, tt.args...)

			out, err := run(t, args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q", w)
				}
			}
		})
	}
}

func TestDisplaySessionHeader(t *testing.T) {
	tests := []struct {
		name    string
		session *internal.Session
		want    []string
	}{
		{
			name:    "nil session",
			session: nil,
		},
		{
			name:    "titled session",
			session: internal.CreateTestSession("s1"),
			want:    []string{"💬 Test Conversation", "ID: s1", "Messages: 2", "Created:"},
		},
		{
			name:    "untitled session without date",
			session: &internal.Session{ID: "s2"},
			want:    []string{internal.DefaultTitle, "Messages: 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			displaySessionHeader(&buf, tt.session)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("header missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestDisplayMessage(t *testing.T) {
	md, err := newMarkdownRenderer(internal.ThemeLight)
	if err != nil {
		t.Fatalf("newMarkdownRenderer() error = %v", err)
	}
	at := time.Date(2025, 1, 2, 10, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		msg  internal.Message
		want []string
	}{
		{
			name: "user message",
			msg:  internal.Message{Role: internal.RoleUser, Content: "Hello, world!", CreatedAt: at},
			want: []string{"👤 User", "[1/2]", "10:00:00", "Hello, world!"},
		},
		{
			name: "assistant message",
			msg:  internal.Message{Role: internal.RoleAssistant, Content: "Hi there!", CreatedAt: at},
			want: []string{"🤖 Assistant", "Hi"},
		},
		{
			name: "empty message",
			msg:  internal.Message{Role: internal.RoleAssistant},
			want: []string{"(empty message)"},
		},
		{
			name: "system message",
			msg:  internal.Message{Role: internal.RoleSystem, Content: "System message"},
			want: []string{"🔧 system", "System message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			displayMessage(&buf, md, 1, tt.msg, 2)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("message missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		width       int
		wantContain string
	}{
		{
			name:        "short text",
			text:        "Hello world",
			width:       80,
			wantContain: "Hello world",
		},
		{
			name:        "long text",
			text:        "This is a very long line of text that should be wrapped when it exceeds the specified width limit",
			width:       20,
			wantContain: "This is a very long\nline of text that",
		},
		{
			name:        "text with newlines",
			text:        "Line 1\nLine 2\nLine 3",
			width:       80,
			wantContain: "Line 1\nLine 2",
		},
		{
			name:        "empty text",
			text:        "",
			width:       80,
			wantContain: "",
		},
		{
			name:        "single long word",
			text:        "supercalifragilisticexpialidocious",
			width:       10,
			wantContain: "supercalifragilisticexpialidocious",
		},
		{
			name:        "wide characters",
			text:        "日本語 日本語 日本語 日本語",
			width:       14,
			wantContain: "日本語 日本語\n日本語 日本語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := wrapText(tt.text, tt.width)
			if !strings.Contains(result, tt.wantContain) {
				t.Errorf("wrapText() = %q, want it to contain %q", result, tt.wantContain)
			}
			for _, line := range strings.Split(result, "\n") {
				if uniseg.StringWidth(line) > tt.width && strings.Contains(line, " ") {
					t.Errorf("line %q wider than %d", line, tt.width)
				}
			}
		})
	}
}
