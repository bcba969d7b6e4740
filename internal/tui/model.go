package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/ultronhq/ultron/internal/chat"
	"github.com/ultronhq/ultron/internal/config"
	"github.com/ultronhq/ultron/internal/history"
	"github.com/ultronhq/ultron/internal/models"
	"github.com/ultronhq/ultron/internal/render"
)

// Message types for the TUI
type (
	eventsMsg struct {
		events []chat.Event
		err    error
	}
	startedMsg struct {
		err error
	}
	attachedMsg struct {
		upload *models.Upload
		err    error
	}
	exportedMsg struct {
		path string
		err  error
	}
	clearedMsg struct {
		n   int
		err error
	}
	copiedMsg struct {
		err error
	}
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// Options configures the chat model
type Options struct {
	Config config.Config
	// BaseURL resolves relative attachment links
	BaseURL string
}

// Model is the chat TUI state. All conversation state lives in the
// controller; the model keeps the latest snapshot and view state.
type Model struct {
	ctx    context.Context
	ctrl   *chat.Controller
	policy chat.ScrollPolicy
	opts   Options

	renderOpts render.Options
	keys       keyMap

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	help     help.Model

	// State
	snap        chat.Snapshot
	sidebar     sidebar
	sidebarOpen bool
	focus       focusArea
	spinning    bool
	ready       bool
	err         error
	info        string
	// notice blocks input until dismissed
	notice string

	// Dimensions
	width  int
	height int
}

// NewModel creates a chat model driving ctrl
func NewModel(ctx context.Context, ctrl *chat.Controller, opts Options) Model {
	theme, _ := render.ResolveTUITheme(opts.Config.TUITheme)
	ApplyTheme(theme)

	ta := textarea.New()
	ta.Placeholder = "Enter a directive... (/help for commands)"
	ta.CharLimit = 8000
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle
	// enter sends; newlines use the Newline binding
	ta.KeyMap.InsertNewline.SetEnabled(false)

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	h := help.New()
	h.Styles.ShortKey = statusKeyStyle
	h.Styles.ShortDesc = statusDescStyle
	h.Styles.FullKey = statusKeyStyle
	h.Styles.FullDesc = statusDescStyle

	return Model{
		ctx:         ctx,
		ctrl:        ctrl,
		policy:      chat.NewScrollPolicy(opts.Config.FollowThresholdRows),
		opts:        opts,
		renderOpts:  render.LoadOptions(opts.Config, 0),
		keys:        defaultKeyMap(),
		textarea:    ta,
		spinner:     s,
		help:        h,
		snap:        ctrl.Snapshot(),
		sidebarOpen: true,
	}
}

// Init loads the session list and starts listening for controller events
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.start(),
		m.listen(),
	)
}

func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.ctrl.Start(m.ctx)}
	}
}

// listen waits for the next batch of controller events
func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		evs, err := m.ctrl.WaitEvents(m.ctx)
		return eventsMsg{events: evs, err: err}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case eventsMsg:
		if msg.err != nil {
			// controller closed or context cancelled
			return m, nil
		}
		m.applyEvents(msg.events)
		cmds = append(cmds, m.listen())
		if m.snap.Loading && !m.spinning {
			m.spinning = true
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case attachedMsg:
		if msg.err != nil {
			m.notice = FormatError(msg.err)
			return m, nil
		}
		m.textarea.SetValue(m.textarea.Value() + msg.upload.Marker())
		m.info = fmt.Sprintf("Attached %s", msg.upload.Filename)
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.info = fmt.Sprintf("Exported to %s", msg.path)
		}
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.info = fmt.Sprintf("Deleted %d sessions", msg.n)
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("clipboard: %w", msg.err)
		} else {
			m.info = "Reply copied"
		}
		return m, nil

	case spinner.TickMsg:
		if !m.snap.Loading {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Typing {
			m.viewport.SetContent(m.renderMessages())
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.notice != "" {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.Send, m.keys.Abort) {
			m.notice = ""
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Abort):
		if m.snap.Loading && m.ctrl.Cancel() {
			m.info = "Reply aborted"
			return m, nil
		}
		if m.focus == focusSidebar {
			m.setFocus(focusInput)
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.sidebarOpen = !m.sidebarOpen
		if !m.sidebarOpen {
			m.setFocus(focusInput)
		}
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		if m.sidebarOpen {
			if m.focus == focusInput {
				m.setFocus(focusSidebar)
			} else {
				m.setFocus(focusInput)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.NewSession):
		m.newSession()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyLastReply()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.start()

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Send):
		return m.submit()
	case key.Matches(msg, m.keys.Newline):
		m.textarea.InsertString("\n")
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.snap.Sessions)
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebar.move(-1, n)
	case key.Matches(msg, m.keys.Down):
		m.sidebar.move(1, n)
	case key.Matches(msg, m.keys.Send):
		id := m.sidebar.selection(m.snap.Sessions)
		if err := m.ctrl.Select(m.ctx, id); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.setFocus(focusInput)
		m.sync(true)
	}
	return m, nil
}

// submit handles enter in the input: slash commands or a send
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if cmd, ok := parseSlash(input); ok {
		return m.runSlash(cmd)
	}
	if input == "exit" || input == "quit" {
		return m, tea.Quit
	}

	err := m.ctrl.Send(m.ctx, input)
	switch {
	case errors.Is(err, chat.ErrBusy):
		m.info = "Ultron is still working; the draft is kept"
		return m, nil
	case errors.Is(err, chat.ErrNotLoaded):
		m.info = "This archive failed to load; select it again to retry. The draft is kept"
		return m, nil
	case err != nil:
		m.err = err
		return m, nil
	}

	m.textarea.Reset()
	m.err = nil
	m.info = ""
	return m, nil
}

func (m Model) runSlash(cmd slashCommand) (tea.Model, tea.Cmd) {
	m.textarea.Reset()
	m.err = nil

	switch cmd.name {
	case "quit", "exit":
		return m, tea.Quit

	case "new":
		m.newSession()
		return m, nil

	case "help":
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil

	case "attach":
		if cmd.arg == "" {
			m.err = fmt.Errorf("usage: /attach <path>")
			return m, nil
		}
		path := expandHome(cmd.arg)
		m.info = "Uploading " + filepath.Base(path) + "..."
		return m, func() tea.Msg {
			up, err := m.ctrl.Attach(m.ctx, path)
			return attachedMsg{upload: up, err: err}
		}

	case "export":
		return m, m.export(cmd.arg)

	case "clear-all":
		return m, func() tea.Msg {
			n, err := m.ctrl.ClearAll(m.ctx)
			return clearedMsg{n: n, err: err}
		}

	default:
		m.err = fmt.Errorf("unknown command /%s (try /help)", cmd.name)
		return m, nil
	}
}

func (m *Model) newSession() {
	if err := m.ctrl.NewSession(); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.sync(true)
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
		m.sidebar.follow(m.snap.Sessions, m.snap.ActiveID)
	}
}

// export writes the displayed session to path, or a default file name in
// the working directory
func (m Model) export(path string) tea.Cmd {
	active, msgs, err := m.ctrl.ActiveMessages()
	if err != nil {
		return func() tea.Msg {
			return exportedMsg{err: err}
		}
	}
	t := history.Transcript{
		Messages: msgs,
		BaseURL:  m.opts.BaseURL,
	}
	if id := active; id != nil {
		if s, ok := m.ctrl.Registry().Lookup(*id); ok {
			t.Session = &s
		} else {
			t.Session = &models.Session{ID: *id}
		}
	}
	if path == "" {
		path = history.DefaultFilename(t, history.ExportFormatMarkdown)
	}
	path = expandHome(path)

	return func() tea.Msg {
		_, err := history.WriteFile(path, t, history.ExportFormatMarkdown)
		return exportedMsg{path: path, err: err}
	}
}

// copyLastReply copies the newest assistant message to the clipboard
func (m Model) copyLastReply() tea.Cmd {
	if !m.opts.Config.CopyToClipboard {
		return nil
	}
	var text string
	for i := len(m.snap.Messages) - 1; i >= 0; i-- {
		if msg := m.snap.Messages[i]; !msg.IsUser() && msg.Content != "" {
			text = msg.Content
			break
		}
	}
	if text == "" {
		return nil
	}
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}

// applyEvents refreshes the snapshot and decides whether to follow the
// newest content. The follow decision uses the viewport as it was before
// the change.
func (m *Model) applyEvents(events []chat.Event) {
	follow := false
	vp := m.viewportState()
	for _, ev := range events {
		switch {
		case ev.LogChange():
			if m.policy.ShouldFollow(ev.Role, ev.LogLen, vp) {
				follow = true
			}
		case ev.Kind == chat.EventError:
			m.err = ev.Err
		case ev.Kind == chat.EventActiveChanged:
			m.err = nil
		}
	}
	m.sync(follow)
}

func (m Model) viewportState() chat.Viewport {
	return chat.Viewport{
		ScrollHeight: m.viewport.TotalLineCount(),
		ScrollTop:    m.viewport.YOffset,
		ClientHeight: m.viewport.Height,
	}
}

// sync pulls a fresh snapshot from the controller
func (m *Model) sync(follow bool) {
	m.snap = m.ctrl.Snapshot()
	m.sidebar.clamp(len(m.snap.Sessions))
	if m.focus != focusSidebar {
		m.sidebar.follow(m.snap.Sessions, m.snap.ActiveID)
	}
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	if follow {
		m.viewport.GotoBottom()
	}
}

// layout sizes the components for the current window
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	mainWidth := m.mainWidth()
	headerHeight := 3
	inputHeight := m.textarea.Height() + 3
	statusHeight := lipgloss.Height(m.renderStatusBar(mainWidth))
	vpHeight := m.height - headerHeight - inputHeight - statusHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	vpWidth := mainWidth - 4

	if !m.ready {
		m.viewport = viewport.New(vpWidth, vpHeight)
		m.viewport.KeyMap = viewport.KeyMap{
			PageUp:   m.keys.PageUp,
			PageDown: m.keys.PageDown,
		}
		m.ready = true
	} else {
		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(mainWidth - 4)
	m.help.Width = mainWidth

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) mainWidth() int {
	if m.sidebarOpen && m.width >= sidebarWidth+40 {
		return m.width - sidebarWidth
	}
	return m.width
}

func (m Model) showSidebar() bool {
	return m.sidebarOpen && m.width >= sidebarWidth+40
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	mainWidth := m.mainWidth()
	var sections []string

	sections = append(sections, m.renderHeader(mainWidth))
	sections = append(sections, messagesAreaStyle.
		Width(mainWidth-2).
		Render(m.viewport.View()))

	input := lipgloss.JoinVertical(lipgloss.Left,
		inputLabelStyle.Render("Directive"),
		m.textarea.View(),
	)
	sections = append(sections, inputPanelStyle.Width(mainWidth-2).Render(input))
	sections = append(sections, m.renderStatusBar(mainWidth))

	main := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.notice != "" {
		box := noticeStyle.Width(min(mainWidth-4, 70)).Render(
			m.notice + "\n\n" + hintStyle.Render("enter/esc to dismiss"),
		)
		main = lipgloss.Place(mainWidth, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	if !m.showSidebar() {
		return main
	}
	side := m.sidebar.view(m.snap.Sessions, m.snap.ActiveID, m.focus == focusSidebar, sidebarWidth, m.height)
	return lipgloss.JoinHorizontal(lipgloss.Top, side, main)
}

func (m Model) renderHeader(width int) string {
	title := "Unsaved session"
	if id := m.snap.ActiveID; id != nil {
		title = fmt.Sprintf("Session %d", *id)
		if s, ok := m.ctrl.Registry().Lookup(*id); ok && s.Title != "" {
			title = s.Title
		}
	}

	parts := []string{
		titleStyle.Render("◆ ULTRON"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(title),
	}
	switch m.snap.State {
	case chat.StateLoading:
		parts = append(parts, hintStyle.Render("  •  "), loadingStyle.Render(m.spinner.View()+" loading archive"))
	case chat.StateStreaming:
		parts = append(parts, hintStyle.Render("  •  "), loadingStyle.Render(m.spinner.View()+" receiving"))
	}

	content := lipgloss.JoinHorizontal(lipgloss.Center, parts...)
	return headerStyle.Width(width - 2).Render(content)
}

// renderMessages renders the visible log for the viewport
func (m Model) renderMessages() string {
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	for i, msg := range m.snap.Messages {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(m.renderMessage(msg, bubbleWidth))
		content.WriteString("\n")
	}

	if m.snap.Typing {
		content.WriteString("\n")
		content.WriteString(assistantLabelStyle.Render("◆ Ultron"))
		content.WriteString("\n")
		content.WriteString(loadingStyle.Render(m.spinner.View() + " typing"))
		content.WriteString("\n")
	}

	return content.String()
}

func (m Model) renderMessage(msg models.Message, width int) string {
	stamp := ""
	if msg.Timestamp != "" {
		stamp = timestampStyle.Render(" · " + msg.Timestamp)
	}

	var body string
	if msg.IsUser() {
		label := userLabelStyle.Render("● You") + stamp
		text := wordwrap.String(msg.Content, width-4)
		body = label + "\n" + userBubbleStyle.Width(width).Render(text)
	} else {
		label := assistantLabelStyle.Render("◆ Ultron") + stamp
		if msg.Content == models.FailureText {
			body = label + "\n" + failureBubbleStyle.Width(width).Render("⚠ "+msg.Content)
		} else {
			opts := m.renderOpts
			opts.Width = width - 4
			rendered := render.MarkdownOrPlain(msg.Content, opts)
			body = label + "\n" + assistantBubbleStyle.Width(width).Render(rendered)
		}
	}

	if msg.AttachmentURL != "" {
		link := history.Transcript{BaseURL: m.opts.BaseURL}.AttachmentLink(msg)
		body += "\n" + attachmentStyle.Render("📎 "+link)
	}
	return body
}

// renderStatusBar renders one info or error line above the key help
func (m Model) renderStatusBar(width int) string {
	line := ""
	if m.err != nil {
		line = errorStyle.Render(truncate.StringWithTail("✗ "+firstLine(m.err.Error()), uint(width), "…"))
	} else if m.info != "" {
		line = infoStyle.Render(truncate.StringWithTail(m.info, uint(width), "…"))
	}

	lines := []string{line, m.help.View(m.keys)}
	if m.help.ShowAll {
		for _, c := range slashHelp {
			lines = append(lines, statusKeyStyle.Render(c.usage)+statusDescStyle.Render("  "+c.desc))
		}
	}
	return statusBarStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// RunChat starts the chat TUI and closes ctrl when it exits
func RunChat(ctx context.Context, ctrl *chat.Controller, opts Options) error {
	defer ctrl.Close()

	p := tea.NewProgram(
		NewModel(ctx, ctrl, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
