// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/redcell-tui/internal/catalog"
	"github.com/jeranaias/redcell-tui/internal/diagnose"
	"github.com/jeranaias/redcell-tui/internal/dispatch"
	"github.com/jeranaias/redcell-tui/internal/history"
	"github.com/jeranaias/redcell-tui/internal/ui/styles"
)

// tuiConversationID keys the dispatcher's in-flight guard for the console.
// One console session, one conversation.
const tuiConversationID = "tui/chat"

// =============================================================================
// STATE
// =============================================================================

// State is the console's input state.
type State int

const (
	StateReady   State = iota // Ready for input
	StateWaiting              // A dispatch is in flight
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Session reports sign-in state for the header. *auth.Manager satisfies it.
type Session interface {
	SignedIn() bool
	Account() string
}

// Deps are the console's collaborators, built by the caller before the
// program starts. All fields except Version are required.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Catalog    *catalog.Catalog
	Session    Session
	// Endpoint is the initially selected deployment name.
	Endpoint string
	// Version is shown in the header.
	Version string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the console.
type Model struct {
	state State
	deps  Deps
	theme *styles.Theme

	// renderer formats assistant markdown; rebuilt on resize so word wrap
	// tracks the terminal width. Nil means plain text.
	renderer *glamour.TermRenderer

	width  int
	height int

	// endpoint is the active deployment name; ctrl+e and /endpoint change it.
	endpoint string

	// conversation holds the transcript and is touched only from the update
	// loop; the dispatcher works on a snapshot, and completed exchanges are
	// appended when the result message arrives. Notices are recorded as
	// system turns, which the dispatcher filters back out of outbound
	// requests.
	conversation *history.History

	// pending is the user turn awaiting a response. It is rendered at the
	// end of the transcript and dropped again if the dispatch fails.
	pending   string
	waitStart time.Time

	// lastDiag is the classified failure shown under the transcript until
	// the next submission.
	lastDiag *diagnose.Diagnostic

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	showHelp bool

	// notice is a transient status-bar message; noticeID invalidates stale
	// expiry ticks.
	notice   string
	noticeID int
}

// New creates the console model.
func New(theme *styles.Theme, deps Deps) Model {
	ti := textinput.New()
	ti.Prompt = "redcell> "
	ti.Placeholder = "Type a message, /help for commands..."
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	return Model{
		state:        StateReady,
		deps:         deps,
		theme:        theme,
		endpoint:     deps.Endpoint,
		conversation: history.New(),
		viewport:     vp,
		input:        ti,
		spinner:      sp,
		keyMap:       DefaultKeyMap(),
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ResponseMsg:
		return m.handleResponse(msg)

	case DispatchFailedMsg:
		return m.handleDispatchFailed(msg)

	case NoticeExpiredMsg:
		if msg.ID == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		if m.state == StateWaiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	// Everything else goes to the input and the viewport (mouse wheel etc).
	var cmds []tea.Cmd
	if m.state == StateReady {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		return m, tea.Quit
	}

	// The help overlay swallows everything until dismissed.
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.CycleEndpoint):
		return m.cycleEndpoint()

	case key.Matches(msg, m.keyMap.Clear):
		m.conversation.Clear()
		m.lastDiag = nil
		m.updateViewport()
		return m.setNotice("conversation cleared")
	}

	if m.state == StateWaiting {
		if key.Matches(msg, m.keyMap.Stop) {
			// Real cancellation: the dispatcher tears down the HTTP request
			// and the in-flight SendChat returns context.Canceled.
			m.deps.Dispatcher.Stop(tuiConversationID)
			return m, nil
		}
		return m, nil
	}

	if key.Matches(msg, m.keyMap.Submit) {
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if strings.HasPrefix(text, "/") {
			m.input.Reset()
			return m.handleSlashCommand(text)
		}
		return m.submit(text)
	}

	// "?" toggles help only when not mid-sentence.
	if msg.String() == "?" && m.input.Value() == "" {
		m.showHelp = true
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// DISPATCH
// =============================================================================

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if m.endpoint == "" {
		return m.setNotice("no endpoint selected (ctrl+e or /endpoint <name>)")
	}

	m.state = StateWaiting
	m.pending = text
	m.waitStart = time.Now()
	m.lastDiag = nil
	m.input.Reset()
	m.input.Blur()
	m.updateViewport()
	m.viewport.GotoBottom()

	return m, tea.Batch(m.spinner.Tick, m.sendCmd(text))
}

// sendCmd runs the dispatch in a tea.Cmd goroutine. The dispatcher gets its
// own snapshot of the transcript, so keys handled while the request is in
// flight (ctrl+l, resize) never touch history concurrently with the
// dispatcher; the live conversation picks up the exchange in handleResponse.
func (m Model) sendCmd(text string) tea.Cmd {
	d := m.deps.Dispatcher
	req := dispatch.Request{
		ConversationID: tuiConversationID,
		Endpoint:       m.endpoint,
		UserMessage:    text,
		History:        history.FromMessages(m.conversation.Messages()),
	}
	started := time.Now()
	return func() tea.Msg {
		resp, err := d.SendChat(context.Background(), req)
		if err != nil {
			return DispatchFailedMsg{Err: err}
		}
		return ResponseMsg{Response: resp, Elapsed: time.Since(started)}
	}
}

func (m Model) handleResponse(msg ResponseMsg) (tea.Model, tea.Cmd) {
	m.state = StateReady
	if m.pending != "" {
		m.conversation.Append(history.NewUserMessage(m.pending))
	}
	m.conversation.Append(history.NewAssistantMessage(msg.Response.Content))
	m.pending = ""
	m.input.Focus()
	m.updateViewport()
	m.viewport.GotoBottom()

	m.notice = msg.Response.Endpoint.Name + " · " + msg.Elapsed.Round(100*time.Millisecond).String()
	m.noticeID++
	id := m.noticeID
	expire := tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return NoticeExpiredMsg{ID: id}
	})
	return m, tea.Batch(textinput.Blink, expire)
}

func (m Model) handleDispatchFailed(msg DispatchFailedMsg) (tea.Model, tea.Cmd) {
	m.state = StateReady
	m.pending = ""
	m.input.Focus()

	if errors.Is(msg.Err, context.Canceled) {
		m.conversation.Append(history.NewSystemMessage("request stopped"))
		m.updateViewport()
		m.viewport.GotoBottom()
		return m, textinput.Blink
	}

	diag := diagnose.Classify(msg.Err)
	m.lastDiag = &diag
	m.updateViewport()
	m.viewport.GotoBottom()
	return m, textinput.Blink
}

// =============================================================================
// ENDPOINT SELECTION
// =============================================================================

func (m Model) cycleEndpoint() (tea.Model, tea.Cmd) {
	names := m.deps.Catalog.Names()
	if len(names) == 0 {
		return m.setNotice("catalog is empty")
	}

	next := names[0]
	for i, name := range names {
		if name == m.endpoint {
			next = names[(i+1)%len(names)]
			break
		}
	}
	m.endpoint = next
	return m.setNotice("endpoint: " + next)
}

func (m Model) switchEndpoint(name string) (tea.Model, tea.Cmd) {
	if _, err := m.deps.Catalog.FindByName(name); err != nil {
		return m.setNotice("unknown endpoint: " + name)
	}
	m.endpoint = name
	return m.setNotice("endpoint: " + name)
}

// =============================================================================
// NOTICES
// =============================================================================

// setNotice shows a transient status-bar message for a few seconds.
func (m Model) setNotice(text string) (tea.Model, tea.Cmd) {
	m.notice = text
	m.noticeID++
	id := m.noticeID
	return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return NoticeExpiredMsg{ID: id}
	})
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// header + input area + status bar
	const reservedHeight = 1 + 3 + 1
	vpHeight := m.height - reservedHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight

	inputWidth := m.width - len(m.input.Prompt) - 4
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.rebuildRenderer()
	m.updateViewport()

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}
