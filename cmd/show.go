package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/assistant-session/internal"
	"github.com/rivo/uniseg"
	"github.com/spf13/cobra"
)

var (
	limit   int
	since   string
	showRaw bool
)

// renderWidth is the wrap width for message content
const renderWidth = 80

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show messages of a session",
	Long: `Display the messages of a chat session. Without an id the active session
is shown. An id may be abbreviated to any unique prefix.

Assistant replies are rendered as markdown in the stored theme; use --raw to
print them as plain wrapped text.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var ref string
		if len(args) > 0 {
			ref = args[0]
		}
		id, err := a.resolveSession(ref)
		if err != nil {
			return err
		}
		session, ok := a.store.Session(id)
		if !ok {
			return fmt.Errorf("session not found: %s", id)
		}

		messages := session.Messages
		if since != "" {
			sinceTime, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("invalid --since timestamp format (expected RFC3339): %w", err)
			}
			filtered := make([]internal.Message, 0, len(messages))
			for _, msg := range messages {
				if !msg.CreatedAt.Before(sinceTime) {
					filtered = append(filtered, msg)
				}
			}
			messages = filtered
		}

		var md *glamour.TermRenderer
		if !showRaw {
			md, err = newMarkdownRenderer(a.store.Theme())
			if err != nil {
				internal.LogWarn("Markdown rendering unavailable: %v", err)
			}
		}

		out := cmd.OutOrStdout()
		displaySessionHeader(out, &session)

		total := len(messages)
		if limit > 0 && limit < len(messages) {
			messages = messages[:limit]
		}
		for i, msg := range messages {
			displayMessage(out, md, i+1, msg, total)
		}

		if limit > 0 && limit < total {
			fmt.Fprintln(out)
			fmt.Fprintln(out, lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Italic(true).
				Render(fmt.Sprintf("... (%d more message(s))", total-limit)))
		}
		return nil
	},
}

// newMarkdownRenderer builds a glamour renderer for the given theme
func newMarkdownRenderer(theme internal.Theme) (*glamour.TermRenderer, error) {
	style := string(theme)
	if style == "" {
		style = string(internal.ThemeDark)
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(renderWidth),
	)
}

func displaySessionHeader(out io.Writer, session *internal.Session) {
	if session == nil {
		return
	}
	title := session.Title
	if title == "" {
		title = internal.DefaultTitle
	}
	fmt.Fprintln(out, sessionHeaderStyle.Render(fmt.Sprintf("💬 %s", title)))

	metaParts := []string{fmt.Sprintf("ID: %s", session.ID)}
	if !session.CreatedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Created: %s", session.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	metaParts = append(metaParts, fmt.Sprintf("Messages: %d", len(session.Messages)))
	fmt.Fprintln(out, sessionMetaStyle.Render(strings.Join(metaParts, " • ")))
	fmt.Fprintln(out)
}

func displayMessage(out io.Writer, md *glamour.TermRenderer, index int, msg internal.Message, total int) {
	var actorStyle lipgloss.Style
	var actorLabel string

	switch msg.Role {
	case internal.RoleUser:
		actorStyle = userMessageStyle
		actorLabel = "👤 User"
	case internal.RoleAssistant:
		actorStyle = assistantMessageStyle
		actorLabel = "🤖 Assistant"
	default:
		actorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		actorLabel = fmt.Sprintf("🔧 %s", msg.Role)
	}

	header := actorStyle.Render(actorLabel) + " " + timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total))
	if !msg.CreatedAt.IsZero() {
		header += " " + timestampStyle.Render(msg.CreatedAt.Local().Format("15:04:05"))
	}
	fmt.Fprintln(out, header)

	content := strings.TrimSpace(msg.Content)
	switch {
	case content == "":
		fmt.Fprintln(out, messageContentStyle.Foreground(lipgloss.Color("240")).Render("(empty message)"))
	case md != nil && msg.Role == internal.RoleAssistant:
		rendered, err := md.Render(content)
		if err != nil {
			internal.LogDebug("Failed to render markdown: %v", err)
			fmt.Fprintln(out, messageContentStyle.Render(wrapText(content, renderWidth)))
		} else {
			fmt.Fprint(out, rendered)
		}
	default:
		fmt.Fprintln(out, messageContentStyle.Render(wrapText(content, renderWidth)))
	}

	fmt.Fprintln(out)
}

// wrapText wraps lines at word boundaries to the given display width
func wrapText(text string, width int) string {
	lines := strings.Split(text, "\n")
	var wrapped []string

	for _, line := range lines {
		if uniseg.StringWidth(line) <= width {
			wrapped = append(wrapped, line)
			continue
		}

		words := strings.Fields(line)
		currentLine := ""
		currentWidth := 0
		for _, word := range words {
			wordWidth := uniseg.StringWidth(word)
			if currentWidth+wordWidth+1 > width {
				if currentLine != "" {
					wrapped = append(wrapped, currentLine)
					currentLine = word
					currentWidth = wordWidth
				} else {
					wrapped = append(wrapped, word)
					currentLine = ""
					currentWidth = 0
				}
			} else {
				if currentLine == "" {
					currentLine = word
					currentWidth = wordWidth
				} else {
					currentLine += " " + word
					currentWidth += wordWidth + 1
				}
			}
		}
		if currentLine != "" {
			wrapped = append(wrapped, currentLine)
		}
	}

	return strings.Join(wrapped, "\n")
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit number of messages to show")
	showCmd.Flags().StringVar(&since, "since", "", "Show messages since timestamp (RFC3339)")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print replies as plain text instead of rendered markdown")
}
