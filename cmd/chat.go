package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/assistant-session/internal"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var (
	chatSession  string
	chatNew      bool
	chatMarkdown bool
)

// historyFilename is the prompt history kept in the data directory
const historyFilename = "chat_history"

var (
	diagnosticStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Chat with the assistant",
	Long: `Chat with the assistant in the active session.

With a message the question is asked once and the reply printed. Without one an
interactive prompt starts; type /help there for the available commands. Press
Ctrl-C while a reply is streaming to cancel it, and Ctrl-C or Ctrl-D at the
prompt to leave.

Replies come from ASSISTANT_GATEWAY_URL when set, otherwise straight from the
configured OpenAI and webhook providers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		gw, label, err := a.chatGateway()
		if err != nil {
			return err
		}
		internal.LogDebug("Chatting through %s", label)

		sid, err := chatTarget(a)
		if err != nil {
			return err
		}

		c := newChatLoop(a, gw, cmd.OutOrStdout(), chatMarkdown)
		c.sessionID = sid

		if len(args) > 0 {
			result, err := c.send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if result.Outcome == internal.OutcomeFailed {
				return fmt.Errorf("assistant reply failed: %w", result.Err)
			}
			return nil
		}

		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		historyPath := filepath.Join(a.paths.DataDir, historyFilename)
		if f, err := os.Open(historyPath); err == nil {
			_, _ = line.ReadHistory(f)
			_ = f.Close()
		}
		defer saveHistory(line, historyPath)

		return c.repl(cmd.Context(), line)
	},
}

// chatTarget picks the session to chat in from --new and --session
func chatTarget(a *app) (string, error) {
	switch {
	case chatNew:
		return a.store.CreateSession(), nil
	case chatSession != "":
		id, err := a.resolveSession(chatSession)
		if err != nil {
			return "", err
		}
		a.store.SetActive(id)
		return id, nil
	}
	return a.store.ActiveID(), nil
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		internal.LogDebug("Failed to create history directory: %v", err)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		internal.LogDebug("Failed to save history: %v", err)
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

// lineReader is the prompt the chat loop reads from
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// chatLoop runs exchanges for the chat command and its interactive prompt
type chatLoop struct {
	app       *app
	acc       *internal.Accumulator
	view      *chatView
	out       io.Writer
	sessionID string
}

func newChatLoop(a *app, gw internal.Gateway, out io.Writer, markdown bool) *chatLoop {
	view := newChatView(out, a.store.Theme(), markdown)
	opts := []internal.AccumulatorOption{internal.WithUpdateHook(view.onEvent)}
	if t := a.titler(); t != nil {
		opts = append(opts, internal.WithTitler(t))
	}
	return &chatLoop{
		app:  a,
		acc:  internal.NewAccumulator(a.store, gw, opts...),
		view: view,
		out:  out,
	}
}

// send runs one exchange; Ctrl-C cancels it
func (c *chatLoop) send(ctx context.Context, input string) (internal.ExchangeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	before, _ := c.app.store.Session(c.sessionID)
	result, err := c.acc.Submit(ctx, c.sessionID, input)
	if err != nil {
		return result, err
	}
	if result.Title != "" && result.Title != before.Title {
		fmt.Fprintln(c.out, hintStyle.Render(fmt.Sprintf("📝 %s", result.Title)))
	}
	return result, nil
}

// repl reads prompts until the user quits
func (c *chatLoop) repl(ctx context.Context, in lineReader) error {
	c.printBanner()

	for {
		input, err := in.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := c.command(input)
			if err != nil {
				fmt.Fprintln(c.out, errorStyle.Render("❌ "+err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		if _, err := c.send(ctx, input); err != nil {
			fmt.Fprintln(c.out, errorStyle.Render("❌ "+err.Error()))
		}
	}
}

func (c *chatLoop) printBanner() {
	s, _ := c.app.store.Session(c.sessionID)
	fmt.Fprintln(c.out, sessionHeaderStyle.Render(fmt.Sprintf("💬 %s", s.Title)))
	fmt.Fprintln(c.out, hintStyle.Render(fmt.Sprintf("Session %s. Type /help for commands.", shortID(s.ID))))
	fmt.Fprintln(c.out)
}

const chatHelp = `Commands:
  /new                    start a new session
  /list                   list sessions
  /use <id>               switch to another session
  /show                   show the current session
  /rename <title>         rename the current session
  /delete [id]            delete a session (default: the current one)
  /theme [light|dark]     set the theme, or toggle it
  /help                   show this help
  /quit                   leave`

// command handles a slash command and reports whether to quit
func (c *chatLoop) command(input string) (bool, error) {
	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]
	store := c.app.store

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/?":
		fmt.Fprintln(c.out, chatHelp)
	case "/new":
		c.sessionID = store.CreateSession()
		c.printBanner()
	case "/list":
		displaySessions(c.out, store.Sessions(), store.ActiveID(), time.Now())
	case "/use":
		if len(args) != 1 {
			return false, errors.New("usage: /use <id>")
		}
		id, err := c.app.resolveSession(args[0])
		if err != nil {
			return false, err
		}
		store.SetActive(id)
		c.sessionID = id
		c.printBanner()
	case "/show":
		s, _ := store.Session(c.sessionID)
		displaySessionHeader(c.out, &s)
		for i, msg := range s.Messages {
			displayMessage(c.out, c.view.md, i+1, msg, len(s.Messages))
		}
	case "/rename":
		if len(args) == 0 {
			return false, errors.New("usage: /rename <title>")
		}
		store.RenameSession(c.sessionID, strings.Join(args, " "))
		s, _ := store.Session(c.sessionID)
		fmt.Fprintln(c.out, hintStyle.Render(fmt.Sprintf("📝 %s", s.Title)))
	case "/delete":
		id := c.sessionID
		if len(args) > 0 {
			resolved, err := c.app.resolveSession(args[0])
			if err != nil {
				return false, err
			}
			id = resolved
		}
		if c.acc.Busy(id) {
			return false, internal.ErrExchangeInFlight
		}
		store.DeleteSession(id)
		c.sessionID = store.ActiveID()
		c.printBanner()
	case "/theme":
		arg := "toggle"
		if len(args) > 0 {
			arg = args[0]
		}
		theme, err := applyTheme(store, arg)
		if err != nil {
			return false, err
		}
		c.view.setTheme(theme)
		fmt.Fprintln(c.out, hintStyle.Render(fmt.Sprintf("🎨 %s theme", theme)))
	default:
		return false, fmt.Errorf("unknown command %s (type /help)", name)
	}
	return false, nil
}

// chatView prints exchange events as they arrive
type chatView struct {
	out      io.Writer
	spinner  *internal.Spinner
	markdown bool
	md       *glamour.TermRenderer
	printed  strings.Builder
}

func newChatView(out io.Writer, theme internal.Theme, markdown bool) *chatView {
	v := &chatView{
		out:      out,
		spinner:  internal.NewSpinner(out, "Thinking..."),
		markdown: markdown,
	}
	v.setTheme(theme)
	return v
}

func (v *chatView) setTheme(theme internal.Theme) {
	md, err := newMarkdownRenderer(theme)
	if err != nil {
		internal.LogWarn("Markdown rendering unavailable: %v", err)
		md = nil
	}
	v.md = md
}

// onEvent is the accumulator update hook
func (v *chatView) onEvent(ev internal.ExchangeEvent) {
	switch ev.State {
	case internal.StateAwaiting:
		v.printed.Reset()
		fmt.Fprintln(v.out, assistantMessageStyle.Render("🤖 Assistant"))
		v.spinner.Start()
	case internal.StateStreaming:
		v.spinner.Stop()
		if v.markdown {
			return
		}
		_, _ = io.WriteString(v.out, ev.Delta)
		v.printed.WriteString(ev.Delta)
	case internal.StateIdle:
		v.spinner.Stop()
		v.finish(ev)
	}
}

// finish prints whatever the streamed text does not already show: the
// rendered reply in markdown mode, an unwrapped JSON reply or a diagnostic
func (v *chatView) finish(ev internal.ExchangeEvent) {
	content := ev.Content
	printed := v.printed.String()

	if v.markdown && v.md != nil && ev.Outcome == internal.OutcomeCompleted {
		if rendered, err := v.md.Render(content); err == nil {
			fmt.Fprint(v.out, rendered)
			return
		}
	}

	paint := func(text string) string {
		if ev.Outcome == internal.OutcomeCompleted {
			return text
		}
		return diagnosticStyle.Render(text)
	}

	switch {
	case content == printed:
		if ev.Outcome == internal.OutcomeAborted {
			fmt.Fprint(v.out, " "+diagnosticStyle.Render("[cancelled]"))
		}
	case printed != "" && strings.HasPrefix(content, printed):
		fmt.Fprint(v.out, paint(content[len(printed):]))
	default:
		if printed != "" {
			fmt.Fprintln(v.out)
		}
		fmt.Fprint(v.out, paint(content))
	}
	fmt.Fprintln(v.out)
	fmt.Fprintln(v.out)
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Chat in this session (ID or prefix) and make it active")
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "Start a new session")
	chatCmd.Flags().BoolVar(&chatMarkdown, "markdown", false, "Render each reply as markdown once it is complete")
}
