package tui

import (
	"context"
	"fmt"
	"strings"

	"companion/internal/chat"
	"companion/internal/contextmgr"
	"companion/internal/i18n"
	"companion/internal/session"
	"companion/internal/slash"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// --- Tea Messages ---

// resultMsg 一次输入处理完成
// resultMsg reports that one input has been handled
type resultMsg struct {
	res slash.Result
	err error
}

// Options 界面显示用的静态信息
// Options holds static display info
type Options struct {
	AIName       string
	UserID       string
	ContextTurns int
}

// App Bubble Tea 主 Model；会话只在后台命令中被修改，界面保存快照
// App is the main Bubble Tea model; the session is only touched by background commands, the view keeps a snapshot
type App struct {
	// 布局 / Layout
	width  int
	height int

	chatView viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	// 快照 / Snapshot
	turns   []chat.Turn
	info    contextmgr.Info
	pending string

	// 状态 / State
	busy      bool
	notice    string
	lastError string

	ctx     context.Context
	runner  *slash.Runner
	session *session.Session
	opts    Options

	theme    Theme
	keys     KeyMap
	locale   *i18n.I18n
	rendered map[string]string
}

// NewApp 创建 TUI 应用
// NewApp creates a new TUI application
func NewApp(ctx context.Context, runner *slash.Runner, s *session.Session, opts Options) App {
	locale := runner.Messages
	if locale == nil {
		locale = i18n.Global()
	}

	ta := textarea.New()
	ta.Placeholder = locale.T("input.placeholder", opts.AIName)
	ta.CharLimit = 8192
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	theme := DarkTheme()
	sp.Style = theme.TitleStyle

	return App{
		chatView: viewport.New(80, 20),
		input:    ta,
		spinner:  sp,
		turns:    s.Turns(),
		info:     runner.Manager.ContextInfo(s),
		ctx:      ctx,
		runner:   runner,
		session:  s,
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		locale:   locale,
		rendered: map[string]string{},
	}
}

func (a App) Init() tea.Cmd {
	return textarea.Blink
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case a.busy:
			// 生成期间忽略输入 / Input is ignored while a call runs
			return a, nil
		case key.Matches(msg, a.keys.Submit):
			return a.submit(a.input.Value())
		case key.Matches(msg, a.keys.ClearChat):
			return a.submit("/clear")
		case key.Matches(msg, a.keys.PageUp), key.Matches(msg, a.keys.PageDown):
			var cmd tea.Cmd
			a.chatView, cmd = a.chatView.Update(msg)
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case resultMsg:
		a.busy = false
		a.pending = ""
		if msg.err != nil {
			a.lastError = msg.err.Error()
			a.refreshChat()
			return a, nil
		}
		if msg.res.Quit {
			return a, tea.Quit
		}
		a.turns = msg.res.Turns
		a.info = msg.res.Context
		a.notice = msg.res.Output
		a.refreshChat()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit 空输入在这里被拒绝，不会到达会话管理器
// submit rejects blank input here; it never reaches the session manager
func (a App) submit(text string) (tea.Model, tea.Cmd) {
	text = strings.TrimSpace(text)
	a.input.Reset()
	if text == "" {
		a.lastError = a.locale.T("error.empty_input")
		return a, nil
	}
	a.busy = true
	a.lastError = ""
	a.notice = ""
	if !slash.IsCommand(text) {
		a.pending = text
	}
	a.refreshChat()
	return a, tea.Batch(a.spinner.Tick, a.send(text))
}

func (a App) send(text string) tea.Cmd {
	ctx, runner, s := a.ctx, a.runner, a.session
	return func() tea.Msg {
		res, err := runner.Send(ctx, s, text)
		return resultMsg{res: res, err: err}
	}
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	sidebarWidth := a.sidebarWidth()
	mainWidth := a.width - sidebarWidth
	if sidebarWidth > 0 {
		mainWidth--
	}

	header := a.theme.TitleStyle.Render(" " + a.locale.T("app.title", a.opts.AIName))
	chatPanel := lipgloss.NewStyle().Width(mainWidth).Height(a.chatView.Height).Render(a.chatView.View())
	inputBox := a.theme.InputStyle.Width(mainWidth).Render(a.input.View())

	main := lipgloss.JoinVertical(lipgloss.Left, header, chatPanel, inputBox)
	if sidebarWidth > 0 {
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, a.renderSidebar(sidebarWidth, a.height-1))
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, a.renderStatusBar(a.width))
}

// --- 内部方法 / Internal methods ---

func (a App) sidebarWidth() int {
	if a.width < 80 {
		return 0
	}
	w := a.width * 25 / 100
	if w < 24 {
		w = 24
	}
	if w > 40 {
		w = 40
	}
	return w
}

func (a *App) relayout() {
	mainWidth := a.width - a.sidebarWidth()
	// header + input (3 lines + border) + status
	panelHeight := a.height - 7
	if panelHeight < 3 {
		panelHeight = 3
	}
	a.chatView = viewport.New(mainWidth, panelHeight)
	a.input.SetWidth(mainWidth - 2)
	a.refreshChat()
}

func (a *App) refreshChat() {
	width := a.chatView.Width
	if width <= 0 {
		width = 80
	}
	var b strings.Builder
	for _, t := range a.turns {
		b.WriteString(a.renderTurn(t, width))
		b.WriteString("\n\n")
	}
	if a.pending != "" {
		b.WriteString(a.theme.UserStyle.Render("👤 " + a.pending))
		b.WriteString("\n\n")
	}
	if a.notice != "" {
		b.WriteString(a.theme.MutedStyle.Render(a.notice))
		b.WriteString("\n")
	}
	if a.lastError != "" {
		b.WriteString(a.theme.ErrorStyle.Render("❌ " + a.lastError))
		b.WriteString("\n")
	}
	a.chatView.SetContent(b.String())
	a.chatView.GotoBottom()
}

func (a *App) renderTurn(t chat.Turn, width int) string {
	if t.Role == chat.RoleUser {
		return a.theme.UserStyle.Render("👤 " + t.Content)
	}
	cacheKey := fmt.Sprintf("%d\x00%s", width, t.Content)
	if out, ok := a.rendered[cacheKey]; ok {
		return out
	}
	out := a.theme.AssistantStyle.Render("🫂 ") + RenderMarkdown(t.Content, width-4)
	a.rendered[cacheKey] = out
	return out
}

func (a App) renderSidebar(width, height int) string {
	inner := width - 4
	fit := func(s string) string { return "  " + runewidth.Truncate(s, inner, "…") }

	parts := []string{
		a.theme.TitleStyle.Render(" " + runewidth.Truncate(a.opts.AIName, width-2, "…")),
		a.theme.MutedStyle.Render(fit(a.locale.T("app.subtitle"))),
		"",
		a.theme.TitleStyle.Render(" " + a.locale.T("sidebar.user")),
		fit(a.opts.UserID),
		"",
		a.theme.TitleStyle.Render(" " + a.locale.T("sidebar.model")),
		fit(a.runner.Manager.CurrentModel()),
		"",
		a.theme.TitleStyle.Render(" " + a.locale.T("sidebar.context")),
		fit(a.locale.T("sidebar.turns", a.info.WindowTurns, a.info.TotalTurns)),
	}
	if a.info.Tokens > 0 {
		parts = append(parts, fit(a.locale.T("sidebar.tokens", a.info.Tokens)))
	}
	limit := a.opts.ContextTurns
	if limit > 0 {
		pct := float64(a.info.WindowTurns) / float64(limit) * 100
		parts = append(parts, "  "+renderProgressBar(pct, inner-1))
	}

	return a.theme.SidebarStyle.Width(width).Height(height).Render(strings.Join(parts, "\n"))
}

func (a App) renderStatusBar(width int) string {
	status := a.locale.T("status.ready")
	if a.busy {
		status = a.spinner.View() + " " + a.locale.T("status.thinking", a.opts.AIName)
	}
	left := " " + status
	right := a.locale.T("keys.hint") + "  "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return a.theme.StatusBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func renderProgressBar(percent float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Run 启动 Bubble Tea TUI
// Run starts the Bubble Tea TUI application
func Run(ctx context.Context, runner *slash.Runner, s *session.Session, opts Options) error {
	app := NewApp(ctx, runner, s, opts)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
