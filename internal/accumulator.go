package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// Gateway sends a conversation to the assistant and returns its reply
type Gateway interface {
	Send(ctx context.Context, turns []Turn) (Reply, error)
}

// Titler produces a short title from the first user message of a session
type Titler interface {
	GenerateTitle(ctx context.Context, firstUserMessage string) (string, error)
}

// ExchangeState is the state of one request/reply exchange
type ExchangeState int

const (
	StateIdle ExchangeState = iota
	StateAwaiting
	StateStreaming
)

func (s ExchangeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}

// Outcome is how an exchange ended
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	}
	return "unknown"
}

// ExchangeResult summarizes a finished exchange
type ExchangeResult struct {
	SessionID      string
	UserMessageID  string
	ReplyMessageID string
	Content        string // final content of the reply message
	Title          string // session title after the exchange
	Outcome        Outcome
	Err            error // cause of a failed or aborted exchange
}

// ExchangeEvent is emitted on every visible change of the reply message
type ExchangeEvent struct {
	SessionID string
	MessageID string
	State     ExchangeState
	Delta     string
	Content   string
	Outcome   Outcome // set when State is StateIdle
}

// Diagnostics are the user-facing texts written into the reply message when
// an exchange does not complete normally
type Diagnostics struct {
	Transport string
	Upstream  string
	Empty     string
	Aborted   string
	Read      string
}

// DefaultDiagnostics returns the English diagnostics
func DefaultDiagnostics() Diagnostics {
	return Diagnostics{
		Transport: "Sorry, the assistant could not be reached. Please try again.",
		Upstream:  "Sorry, the assistant returned an error.",
		Empty:     "The assistant returned an empty reply.",
		Aborted:   "Request cancelled.",
		Read:      "Sorry, the reply was interrupted. Please try again.",
	}
}

func (d Diagnostics) upstream(status int, detail string) string {
	detail = strings.TrimSpace(detail)
	switch {
	case status > 0 && detail != "":
		return fmt.Sprintf("%s (%d: %s)", d.Upstream, status, detail)
	case status > 0:
		return fmt.Sprintf("%s (%d)", d.Upstream, status)
	case detail != "":
		return fmt.Sprintf("%s (%s)", d.Upstream, detail)
	}
	return d.Upstream
}

const defaultReadBufferSize = 4096

// Accumulator drives exchanges between a Store and a Gateway, streaming the
// reply into the trailing assistant message of the session
type Accumulator struct {
	store       *Store
	gateway     Gateway
	titler      Titler
	diagnostics Diagnostics
	hook        func(ExchangeEvent)
	bufSize     int

	mu       sync.Mutex
	inFlight map[string]bool
}

// AccumulatorOption configures an Accumulator
type AccumulatorOption func(*Accumulator)

// WithTitler enables title generation after the first exchange of a session
func WithTitler(t Titler) AccumulatorOption {
	return func(a *Accumulator) { a.titler = t }
}

// WithDiagnostics overrides the diagnostic texts; empty fields keep defaults
func WithDiagnostics(d Diagnostics) AccumulatorOption {
	return func(a *Accumulator) {
		if d.Transport != "" {
			a.diagnostics.Transport = d.Transport
		}
		if d.Upstream != "" {
			a.diagnostics.Upstream = d.Upstream
		}
		if d.Empty != "" {
			a.diagnostics.Empty = d.Empty
		}
		if d.Aborted != "" {
			a.diagnostics.Aborted = d.Aborted
		}
		if d.Read != "" {
			a.diagnostics.Read = d.Read
		}
	}
}

// WithUpdateHook registers a callback invoked synchronously for every event
func WithUpdateHook(hook func(ExchangeEvent)) AccumulatorOption {
	return func(a *Accumulator) { a.hook = hook }
}

// WithReadBufferSize sets the size of each stream read
func WithReadBufferSize(n int) AccumulatorOption {
	return func(a *Accumulator) {
		if n > 0 {
			a.bufSize = n
		}
	}
}

// NewAccumulator creates an Accumulator
func NewAccumulator(store *Store, gateway Gateway, opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		store:       store,
		gateway:     gateway,
		diagnostics: DefaultDiagnostics(),
		bufSize:     defaultReadBufferSize,
		inFlight:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Busy reports whether an exchange is running for the session
func (a *Accumulator) Busy(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight[sessionID]
}

func (a *Accumulator) acquire(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight[sessionID] {
		return false
	}
	a.inFlight[sessionID] = true
	return true
}

func (a *Accumulator) release(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, sessionID)
}

// exchange tracks the reply message of one Submit call
type exchange struct {
	acc       *Accumulator
	sessionID string
	messageID string
	state     ExchangeState
	content   strings.Builder
}

func (e *exchange) emit(delta string, outcome Outcome) {
	if e.acc.hook == nil {
		return
	}
	e.acc.hook(ExchangeEvent{
		SessionID: e.sessionID,
		MessageID: e.messageID,
		State:     e.state,
		Delta:     delta,
		Content:   e.content.String(),
		Outcome:   outcome,
	})
}

// append adds a chunk to the reply message
func (e *exchange) append(delta string) {
	if delta == "" {
		return
	}
	e.state = StateStreaming
	e.content.WriteString(delta)
	e.acc.store.UpdateMessage(e.sessionID, e.messageID, e.content.String())
	e.emit(delta, OutcomeCompleted)
}

// replace overwrites the reply message
func (e *exchange) replace(text string) {
	e.content.Reset()
	e.content.WriteString(text)
	e.acc.store.UpdateMessage(e.sessionID, e.messageID, text)
}

// Submit runs one exchange: it appends the user message and a placeholder
// reply, sends the conversation and streams the reply into the placeholder.
// Only input validation errors are returned; gateway failures are written
// into the reply message and reported in the result.
func (a *Accumulator) Submit(ctx context.Context, sessionID, input string) (ExchangeResult, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return ExchangeResult{}, ErrEmptyInput
	}
	before, ok := a.store.Session(sessionID)
	if !ok {
		return ExchangeResult{}, ErrUnknownSession
	}
	if !a.acquire(sessionID) {
		return ExchangeResult{}, ErrExchangeInFlight
	}
	defer a.release(sessionID)

	firstExchange := !before.HasUserMessage()

	userMsg, ok := a.store.AppendMessage(sessionID, Message{Role: RoleUser, Content: text})
	if !ok {
		return ExchangeResult{}, ErrUnknownSession
	}
	placeholder, ok := a.store.AppendMessage(sessionID, Message{Role: RoleAssistant})
	if !ok {
		return ExchangeResult{}, ErrUnknownSession
	}

	ex := &exchange{acc: a, sessionID: sessionID, messageID: placeholder.ID, state: StateAwaiting}
	ex.emit("", OutcomeCompleted)

	result := ExchangeResult{
		SessionID:      sessionID,
		UserMessageID:  userMsg.ID,
		ReplyMessageID: placeholder.ID,
	}
	result.Outcome, result.Err = a.run(ctx, ex)

	if result.Outcome != OutcomeCompleted {
		LogDebug("Exchange %s on session %s: %v", result.Outcome, sessionID, result.Err)
	}
	ex.state = StateIdle
	ex.emit("", result.Outcome)

	if firstExchange && result.Outcome != OutcomeAborted && a.titler != nil {
		a.generateTitle(ctx, sessionID, text)
	}

	if err := a.store.Flush(); err != nil {
		LogDebug("Failed to flush session %s: %v", sessionID, err)
	}

	result.Content = ex.content.String()
	if session, ok := a.store.Session(sessionID); ok {
		result.Title = session.Title
	}
	return result, nil
}

// run sends the conversation and resolves the reply into the exchange
func (a *Accumulator) run(ctx context.Context, ex *exchange) (Outcome, error) {
	session, ok := a.store.Session(ex.sessionID)
	if !ok {
		return OutcomeFailed, ErrUnknownSession
	}
	turns := make([]Turn, 0, len(session.Messages))
	for _, m := range session.Messages {
		if m.ID == ex.messageID {
			break
		}
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}

	reply, err := a.gateway.Send(ctx, turns)
	if err != nil {
		if reply.Stream != nil {
			reply.Stream.Close()
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			ex.replace(a.diagnostics.Aborted)
			return OutcomeAborted, err
		}
		ex.replace(a.diagnostics.Transport)
		return OutcomeFailed, err
	}

	switch reply.Kind {
	case ReplyPlainText:
		if reply.Stream == nil {
			return a.finish(ex)
		}
		return a.stream(ctx, ex, reply.Stream)
	case ReplyStructured:
		ex.append(reply.Text)
		return a.finish(ex)
	case ReplyError:
		ex.replace(a.diagnostics.upstream(reply.Status, reply.Detail))
		return OutcomeFailed, &UpstreamError{Status: reply.Status, Detail: reply.Detail}
	}
	ex.replace(a.diagnostics.Transport)
	return OutcomeFailed, fmt.Errorf("unknown reply kind %d", reply.Kind)
}

// stream reads body sequentially, applying every complete UTF-8 prefix as a
// chunk. Cancelling ctx closes body, which abandons the pending read.
func (a *Accumulator) stream(ctx context.Context, ex *exchange, body io.ReadCloser) (Outcome, error) {
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()
	defer body.Close()

	buf := make([]byte, a.bufSize)
	var pending []byte
	for {
		n, err := body.Read(buf)
		if ctx.Err() != nil {
			return a.abort(ex, ctx.Err())
		}
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if cut := completeUTF8(pending); cut > 0 {
				ex.append(strings.ToValidUTF8(string(pending[:cut]), "\uFFFD"))
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return a.abort(ex, ctx.Err())
			}
			ex.replace(a.diagnostics.Read)
			return OutcomeFailed, err
		}
	}
	if len(pending) > 0 {
		ex.append(strings.ToValidUTF8(string(pending), "\uFFFD"))
	}
	return a.finish(ex)
}

// abort keeps partial content; an untouched placeholder gets a diagnostic
func (a *Accumulator) abort(ex *exchange, cause error) (Outcome, error) {
	if ex.content.Len() == 0 {
		ex.replace(a.diagnostics.Aborted)
	}
	return OutcomeAborted, cause
}

// finish unwraps whole-document JSON replies and rejects empty ones
func (a *Accumulator) finish(ex *exchange) (Outcome, error) {
	text := ex.content.String()
	if looksLikeJSON(text) {
		if detail, ok := ExtractErrorDetail([]byte(text)); ok {
			ex.replace(a.diagnostics.upstream(0, detail))
			return OutcomeFailed, &UpstreamError{Detail: detail}
		}
		if reply, ok := ExtractReplyText([]byte(text)); ok {
			ex.replace(reply)
			text = reply
		}
	}
	if strings.TrimSpace(text) == "" {
		ex.replace(a.diagnostics.Empty)
		return OutcomeFailed, ErrEmptyReply
	}
	return OutcomeCompleted, nil
}

func (a *Accumulator) generateTitle(ctx context.Context, sessionID, text string) {
	title, err := a.titler.GenerateTitle(ctx, text)
	if err != nil {
		LogDebug("Title generation failed for session %s: %v", sessionID, err)
		return
	}
	if a.store.ApplyGeneratedTitle(sessionID, title) {
		LogDebug("Session %s titled %q", sessionID, title)
	}
}

// completeUTF8 returns the length of the longest prefix of b that does not
// end inside a multi-byte sequence
func completeUTF8(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
