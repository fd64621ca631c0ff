package main

import (
	"fmt"
	"os"
	"path/filepath"

	"companion/internal/repl"
	"companion/internal/tui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newChatCmd(c *cli) *cobra.Command {
	var (
		plain    bool
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation (default)",
		Long:  "Start an interactive conversation. Uses the full-screen TUI when attached to a terminal, line mode otherwise.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer res.Close()

			ctx := cmd.Context()
			// 测试会替换输入输出 / Tests replace in and out
			stdinTTY := cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd()))
			stdoutTTY := cmd.OutOrStdout() == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))

			if !plain && stdinTTY && stdoutTTY {
				return tui.Run(ctx, res.Runner, s, tui.Options{
					AIName:       res.Persona.AIName,
					UserID:       s.UserID(),
					ContextTurns: res.Config.Session.ContextTurns,
				})
			}

			var input repl.LineInput
			if stdinTTY {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Messages.T("startup.repl_mode"))
				var inputErr error
				input, inputErr = repl.NewLineInput(filepath.Join(res.Config.Storage.BaseDir, "repl.history"))
				if inputErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "line editor unavailable, fallback to basic input: %v\n", inputErr)
				}
			} else {
				input = repl.NewBasicLineInput(cmd.InOrStdin(), nil)
			}
			defer input.Close()

			loop := repl.NewLoop(res.Runner, s, input, cmd.OutOrStdout())
			loop.AIName = res.Persona.AIName
			loop.Markdown = markdown && stdoutTTY
			if !stdoutTTY {
				loop.Color = false
			}
			return loop.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Use line mode even on a terminal")
	cmd.Flags().BoolVar(&markdown, "markdown", true, "Render replies as markdown in line mode")
	return cmd
}
