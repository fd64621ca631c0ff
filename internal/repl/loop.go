package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"companion/internal/chat"
	"companion/internal/session"
	"companion/internal/slash"
	"companion/internal/tui"

	"github.com/chzyer/readline"
	"github.com/mattn/go-runewidth"
)

// ANSI colors for prompt
const (
	ansiReset = "\x1b[0m"
	ansiDim   = "\x1b[90m"
	ansiGreen = "\x1b[32m"
	ansiCyan  = "\x1b[36m"
	ansiRed   = "\x1b[31m"
)

const promptModelWidth = 32

// Loop holds line-mode state: runner, session and what has been printed.
// Loop 持有行模式状态：命令执行器、会话与已输出的轮次数。
type Loop struct {
	Runner  *slash.Runner
	Session *session.Session
	Input   LineInput
	Out     io.Writer
	AIName  string
	// Markdown renders assistant turns with glamour when set
	Markdown bool
	Color    bool

	turns  []chat.Turn
	shown  int
	tokens int
	window int
}

// NewLoop 创建行模式循环
// NewLoop builds a line-mode loop
func NewLoop(runner *slash.Runner, s *session.Session, in LineInput, out io.Writer) *Loop {
	turns := s.Turns()
	info := runner.Manager.ContextInfo(s)
	return &Loop{
		Runner:  runner,
		Session: s,
		Input:   in,
		Out:     out,
		Color:   useColor(),
		turns:   turns,
		tokens:  info.Tokens,
		window:  info.WindowTurns,
	}
}

// Run 读取输入直到 EOF 或 /quit；Ctrl+C 取消当前请求但不退出
// Run reads input until EOF or /quit; Ctrl+C cancels the in-flight call without exiting
func (loop *Loop) Run(ctx context.Context) error {
	if loop.Runner == nil || loop.Session == nil {
		return fmt.Errorf("runner or session is nil")
	}
	// 先显示已有对话的最后一条 / Show the latest existing turn first
	if n := len(loop.turns); n > 0 {
		loop.shown = n - 1
	}
	loop.printNewTurns()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := loop.Input.ReadLine(loop.prompt())
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				fmt.Fprintln(loop.Out)
				continue
			case errors.Is(err, io.EOF):
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		res, err := loop.Runner.Send(turnCtx, loop.Session, input)
		stop()
		if err != nil {
			loop.printError(err)
			continue
		}
		if res.Quit {
			return nil
		}
		loop.apply(res)
	}
}

func (loop *Loop) apply(res slash.Result) {
	if len(res.Turns) < len(loop.turns) || !sameStart(res.Turns, loop.turns) {
		// 历史被清空 / History was reset
		loop.shown = 0
	}
	loop.turns = res.Turns
	loop.tokens = res.Context.Tokens
	loop.window = res.Context.WindowTurns
	if res.Output != "" {
		loop.printDim(res.Output)
	}
	loop.printNewTurns()
}

// printNewTurns 只输出新增的助手轮次；用户轮次已由终端回显
// printNewTurns prints new assistant turns only; user turns were already echoed by the terminal
func (loop *Loop) printNewTurns() {
	for _, t := range loop.turns[loop.shown:] {
		if t.Role != chat.RoleAssistant {
			continue
		}
		loop.printAssistant(t.Content)
	}
	loop.shown = len(loop.turns)
}

func (loop *Loop) printAssistant(content string) {
	name := loop.AIName
	if name == "" {
		name = "🫂"
	}
	if loop.Color {
		fmt.Fprintf(loop.Out, "%s%s%s\n", ansiCyan, name, ansiReset)
	} else {
		fmt.Fprintln(loop.Out, name)
	}
	if loop.Markdown {
		content = tui.RenderMarkdown(content, 100)
	}
	fmt.Fprintln(loop.Out, content)
	fmt.Fprintln(loop.Out)
}

func (loop *Loop) printDim(text string) {
	if loop.Color {
		fmt.Fprintf(loop.Out, "%s%s%s\n", ansiDim, text, ansiReset)
		return
	}
	fmt.Fprintln(loop.Out, text)
}

func (loop *Loop) printError(err error) {
	if loop.Color {
		fmt.Fprintf(loop.Out, "%serror: %v%s\n", ansiRed, err, ansiReset)
		return
	}
	fmt.Fprintf(loop.Out, "error: %v\n", err)
}

// prompt 两段式提示符：context 信息 + 输入符号
// prompt is the two-part prompt: context line plus the input marker
func (loop *Loop) prompt() string {
	model := runewidth.Truncate(loop.Runner.Manager.CurrentModel(), promptModelWidth, "…")
	line1 := fmt.Sprintf("context: %d turns · %d tokens · model: %s", loop.window, loop.tokens, model)
	if !loop.Color {
		return line1 + "\n> "
	}
	return ansiDim + line1 + ansiReset + "\n" + ansiGreen + "> " + ansiReset
}

func sameStart(a, b []chat.Turn) bool {
	n := len(b)
	if len(a) < n {
		n = len(a)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func useColor() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("COMPANION_NO_COLOR")) != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
