package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/teemow/inboxchat/internal/actions"
	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/login"
	"github.com/teemow/inboxchat/internal/session"
)

// Backend is everything the dashboard asks of the gateway client.
type Backend interface {
	chat.Backend
	actions.ReplyBackend
	actions.DeleteBackend
	login.AuthURLSource
	Logout(ctx context.Context) error
}

// Options configures a Model.
type Options struct {
	Backend         Backend
	Session         *session.Session
	CallbackAddr    string
	EmailLimit      int
	CategorizeLimit int
	Logger          *slog.Logger
	Metrics         *instrumentation.Metrics

	// OpenBrowser replaces the platform browser opener during sign-in.
	OpenBrowser func(url string) error
	// Context is the parent of every backend request. Defaults to Background.
	Context context.Context
}

// Messages shown on the landing screen.
const (
	MessageSessionExpired = "Your session has expired. Please sign in again."
	MessageSignInCanceled = "Sign-in canceled."
)

type screen int

const (
	screenLanding screen = iota
	screenDashboard
)

// workspace is the per-sign-in state. A new one is built after every login
// so nothing from a previous account survives.
type workspace struct {
	chat  *chat.Orchestrator
	reply *actions.ReplyDialog
	del   *actions.DeleteDialog
}

func newWorkspace(opts Options) *workspace {
	orch := chat.New(opts.Backend, chat.WithLogger(opts.Logger), chat.WithMetrics(opts.Metrics))
	return &workspace{
		chat:  orch,
		reply: actions.NewReplyDialog(opts.Backend, orch, opts.Logger),
		del:   actions.NewDeleteDialog(opts.Backend, orch, orch, opts.Logger),
	}
}

type (
	initDoneMsg struct {
		ws   *workspace
		user *gateway.User
		err  error
	}
	turnDoneMsg struct {
		ws    *workspace
		turn  chat.Turn
		reply gateway.ChatReply
		err   error
	}
	draftMsg struct {
		ws     *workspace
		ticket actions.Ticket
		draft  string
		err    error
	}
	sentMsg struct {
		ws     *workspace
		ticket actions.Ticket
		err    error
	}
	deletedMsg struct {
		ws     *workspace
		ticket actions.Ticket
		err    error
	}
	loginURLMsg     struct{ url string }
	loginDoneMsg    struct{ err error }
	logoutDoneMsg   struct{ err error }
	sessionEndedMsg struct{ reason string }
)

// Model is the Bubble Tea model of the interactive client.
type Model struct {
	opts   Options
	ctx    context.Context
	logger *slog.Logger
	events chan tea.Msg

	screen screen
	ws     *workspace

	signingIn   bool
	authURL     string
	authErr     string
	cancelLogin context.CancelFunc

	input    textinput.Model
	draft    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	status   string

	width  int
	height int
}

// New builds the model. With a stored credential it starts on the dashboard,
// otherwise on the landing screen. The session's end hook switches back to
// landing from any screen.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.EmailLimit <= 0 {
		opts.EmailLimit = gateway.DefaultEmailLimit
	}
	if opts.CategorizeLimit <= 0 {
		opts.CategorizeLimit = gateway.DefaultCategorizeLimit
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about your inbox, or /help"
	ti.Prompt = "> "
	ti.Focus()

	ta := textarea.New()
	ta.Placeholder = "Write your reply..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(8)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		opts:     opts,
		ctx:      opts.Context,
		logger:   opts.Logger,
		events:   make(chan tea.Msg, 8),
		input:    ti,
		draft:    ta,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}

	events := m.events
	opts.Session.OnEnd(func(reason string) {
		select {
		case events <- sessionEndedMsg{reason: reason}:
		default:
		}
	})

	if opts.Session.Authenticated() {
		m.screen = screenDashboard
		m.ws = newWorkspace(opts)
	}
	return m
}

// Init starts the spinner, the event listener and, on the dashboard, the
// current-user fetch.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, waitForEvent(m.events)}
	if m.screen == screenDashboard {
		cmds = append(cmds, m.initCmd(m.ws))
	}
	return tea.Batch(cmds...)
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionEndedMsg:
		if m.screen == screenDashboard {
			text := ""
			if msg.reason == session.ReasonUnauthorized {
				text = MessageSessionExpired
			}
			m.toLanding(text)
		}
		return m, waitForEvent(m.events)

	case loginURLMsg:
		m.authURL = msg.url
		return m, waitForEvent(m.events)

	case loginDoneMsg:
		return m.loginDone(msg.err)

	case logoutDoneMsg:
		if msg.err != nil {
			m.logger.Warn("logout failed", logging.Err(msg.err))
		}
		if m.screen == screenDashboard {
			m.toLanding("")
		}
		return m, nil

	case initDoneMsg:
		if msg.ws != m.ws {
			return m, nil
		}
		if err := m.ws.chat.CompleteInit(msg.user, msg.err); err != nil {
			if m.opts.Session.Authenticated() {
				_ = m.opts.Session.End(session.ReasonUnauthorized)
			}
			m.toLanding("Could not load your account: " + gateway.ErrorDetail(msg.err) + ". Please sign in again.")
			return m, nil
		}
		m.refreshViewport()
		return m, nil

	case turnDoneMsg:
		if msg.ws != m.ws {
			return m, nil
		}
		m.ws.chat.CompleteTurn(msg.turn, msg.reply, msg.err)
		m.refreshViewport()
		return m, nil

	case draftMsg:
		if msg.ws != m.ws {
			return m, nil
		}
		m.ws.reply.CompleteOpen(msg.ticket, msg.draft, msg.err)
		if m.ws.reply.State() != actions.ReplyEditable {
			return m, nil
		}
		m.draft.SetValue(m.ws.reply.Draft())
		return m, m.draft.Focus()

	case sentMsg:
		if msg.ws != m.ws {
			return m, nil
		}
		m.ws.reply.CompleteConfirm(msg.ticket, msg.err)
		if m.ws.reply.State() == actions.ReplySent {
			cmd := m.closeReply()
			m.refreshViewport()
			return m, cmd
		}
		return m, nil

	case deletedMsg:
		if msg.ws != m.ws {
			return m, nil
		}
		m.ws.del.CompleteConfirm(msg.ticket, msg.err)
		if m.ws.del.State() == actions.DeleteDeleted {
			m.ws.del.Close()
			m.refreshViewport()
			return m, m.input.Focus()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		if m.cancelLogin != nil {
			m.cancelLogin()
		}
		return m, tea.Quit
	}
	if m.screen == screenLanding {
		return m.handleLandingKey(msg)
	}
	switch {
	case m.ws.reply.IsOpen():
		return m.handleReplyKey(msg)
	case m.ws.del.IsOpen():
		return m.handleDeleteKey(msg)
	}

	switch msg.Type {
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleLandingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.signingIn {
		if msg.Type == tea.KeyEsc && m.cancelLogin != nil {
			m.cancelLogin()
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "enter", "l":
		ctx, cancel := context.WithCancel(m.ctx)
		m.cancelLogin = cancel
		m.signingIn = true
		m.authURL = ""
		m.authErr = ""
		return m, m.loginCmd(ctx)
	}
	return m, nil
}

func (m Model) handleReplyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ws := m.ws
	switch msg.Type {
	case tea.KeyEsc:
		return m, m.closeReply()
	case tea.KeyCtrlS:
		if ws.reply.State() != actions.ReplyEditable {
			return m, nil
		}
		_ = ws.reply.SetDraft(m.draft.Value())
		t, err := ws.reply.BeginConfirm()
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = ""
		return m, m.sendCmd(ws, t)
	}

	if ws.reply.State() != actions.ReplyEditable {
		return m, nil
	}
	var cmd tea.Cmd
	m.draft, cmd = m.draft.Update(msg)
	_ = ws.reply.SetDraft(m.draft.Value())
	return m, cmd
}

func (m Model) handleDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ws := m.ws
	switch msg.String() {
	case "y", "Y", "enter":
		if !ws.del.CanConfirm() {
			return m, nil
		}
		t, err := ws.del.BeginConfirm()
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m, m.deleteCmd(ws, t)
	case "n", "N", "esc":
		if ws.del.State() == actions.DeleteDeleting {
			return m, nil
		}
		ws.del.Close()
		return m, m.input.Focus()
	}
	return m, nil
}

// submit runs the input line as a command or chat turn. The line is kept
// when the turn cannot start so nothing typed is lost.
func (m Model) submit() (tea.Model, tea.Cmd) {
	ws := m.ws
	cmd, err := ParseCommand(m.input.Value())
	if err != nil {
		m.status = err.Error()
		return m, nil
	}

	var turn chat.Turn
	switch cmd.Kind {
	case CommandChat:
		turn, err = ws.chat.BeginTurn(cmd.Text)
	case CommandDigest:
		turn, err = ws.chat.BeginDigest(m.opts.CategorizeLimit)
	case CommandRefresh:
		turn, err = ws.chat.BeginRefresh(m.opts.EmailLimit)
	case CommandReply:
		return m.openReply(cmd)
	case CommandDelete:
		return m.openDelete(cmd)
	case CommandLogout:
		m.input.Reset()
		return m, m.logoutCmd()
	case CommandQuit:
		return m, tea.Quit
	case CommandHelp:
		m.input.Reset()
		m.status = HelpText
		return m, nil
	}

	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return m, nil
	case errors.Is(err, chat.ErrBusy):
		m.status = "Waiting for the assistant to answer..."
		return m, nil
	case errors.Is(err, chat.ErrNotReady):
		m.status = "Still loading your account..."
		return m, nil
	case err != nil:
		m.status = err.Error()
		return m, nil
	}

	m.input.Reset()
	m.status = ""
	m.refreshViewport()
	return m, m.turnCmd(ws, turn)
}

func (m Model) openReply(cmd Command) (tea.Model, tea.Cmd) {
	email, ok := m.emailAt(cmd.Index)
	if !ok {
		m.status = fmt.Sprintf("No email #%d in the current results.", cmd.Index)
		return m, nil
	}
	t, err := m.ws.reply.BeginOpen(email, cmd.Text)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.input.Reset()
	m.input.Blur()
	m.draft.Reset()
	m.status = ""
	return m, m.generateCmd(m.ws, t)
}

func (m Model) openDelete(cmd Command) (tea.Model, tea.Cmd) {
	email, ok := m.emailAt(cmd.Index)
	if !ok {
		m.status = fmt.Sprintf("No email #%d in the current results.", cmd.Index)
		return m, nil
	}
	if err := m.ws.del.Open(email); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.input.Reset()
	m.input.Blur()
	m.status = ""
	return m, nil
}

func (m Model) emailAt(index int) (gateway.Email, bool) {
	visible := m.ws.chat.Results().Visible()
	if index < 1 || index > len(visible) {
		return gateway.Email{}, false
	}
	return visible[index-1], true
}

func (m *Model) closeReply() tea.Cmd {
	m.ws.reply.Close()
	m.draft.Reset()
	m.draft.Blur()
	return m.input.Focus()
}

func (m Model) loginDone(err error) (tea.Model, tea.Cmd) {
	m.signingIn = false
	m.authURL = ""
	if m.cancelLogin != nil {
		m.cancelLogin()
		m.cancelLogin = nil
	}

	var authErr *login.AuthError
	switch {
	case err == nil:
	case errors.As(err, &authErr):
		m.authErr = authErr.Message
		return m, nil
	case errors.Is(err, context.Canceled):
		m.authErr = MessageSignInCanceled
		return m, nil
	default:
		m.authErr = gateway.ErrorDetail(err)
		return m, nil
	}

	m.authErr = ""
	m.screen = screenDashboard
	m.ws = newWorkspace(m.opts)
	m.input.Reset()
	m.viewport.SetContent("")
	return m, tea.Batch(m.input.Focus(), m.initCmd(m.ws))
}

func (m *Model) toLanding(text string) {
	if m.cancelLogin != nil {
		m.cancelLogin()
		m.cancelLogin = nil
	}
	if m.ws != nil {
		m.ws.reply.Close()
		m.ws.del.Close()
	}
	m.ws = nil
	m.screen = screenLanding
	m.signingIn = false
	m.authErr = text
	m.status = ""
	m.input.Reset()
	m.draft.Reset()
	m.viewport.SetContent("")
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.ws != nil && m.ws.reply.IsOpen() {
		m.draft, cmd = m.draft.Update(msg)
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = width
	m.viewport.Height = max(height-8, 3)
	m.input.Width = max(width-4, 10)
	m.draft.SetWidth(max(width-6, 10))
}

func (m *Model) refreshViewport() {
	if m.ws == nil {
		m.viewport.SetContent("")
		return
	}
	content := RenderTranscript(m.ws.chat.Transcript())
	if results := RenderResults(m.ws.chat.Results()); results != "" {
		content += "\n" + results
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) initCmd(ws *workspace) tea.Cmd {
	ctx, backend := m.ctx, m.opts.Backend
	return func() tea.Msg {
		user, err := backend.CurrentUser(ctx)
		return initDoneMsg{ws: ws, user: user, err: err}
	}
}

func (m Model) turnCmd(ws *workspace, turn chat.Turn) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		reply, err := ws.chat.Execute(ctx, turn)
		return turnDoneMsg{ws: ws, turn: turn, reply: reply, err: err}
	}
}

func (m Model) generateCmd(ws *workspace, t actions.Ticket) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		draft, err := ws.reply.Generate(ctx, t)
		return draftMsg{ws: ws, ticket: t, draft: draft, err: err}
	}
}

func (m Model) sendCmd(ws *workspace, t actions.Ticket) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_, err := ws.reply.Send(ctx, t)
		return sentMsg{ws: ws, ticket: t, err: err}
	}
}

func (m Model) deleteCmd(ws *workspace, t actions.Ticket) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return deletedMsg{ws: ws, ticket: t, err: ws.del.Delete(ctx, t)}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	ctx, backend := m.ctx, m.opts.Backend
	return func() tea.Msg {
		return logoutDoneMsg{err: backend.Logout(ctx)}
	}
}

// loginCmd runs the browser sign-in. The authorization URL is posted to the
// event channel so the landing screen can show it while the flow waits.
func (m Model) loginCmd(ctx context.Context) tea.Cmd {
	opts, events := m.opts, m.events
	return func() tea.Msg {
		flow := login.NewFlow(opts.Backend, opts.Session, opts.CallbackAddr, io.Discard, logging.NewSlogAdapter(opts.Logger))
		open := flow.OpenBrowser
		if opts.OpenBrowser != nil {
			open = opts.OpenBrowser
		}
		flow.OpenBrowser = func(url string) error {
			select {
			case events <- loginURLMsg{url: url}:
			default:
			}
			return open(url)
		}
		return loginDoneMsg{err: flow.Start(ctx)}
	}
}
