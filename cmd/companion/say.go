package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSayCmd(c *cli) *cobra.Command {
	var speak bool
	cmd := &cobra.Command{
		Use:   "say <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			res, s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer res.Close()
			if text == "" {
				return fmt.Errorf("%s", res.Messages.T("error.empty_input"))
			}

			turn, err := res.Manager.Exchange(cmd.Context(), s, text, "")
			fmt.Fprintln(cmd.OutOrStdout(), turn.Content)
			if err != nil {
				return fmt.Errorf("save history: %w", err)
			}
			if speak {
				path, err := res.Manager.Speak(cmd.Context(), turn)
				if err != nil {
					return fmt.Errorf("%s", res.Messages.T("audio.error", err.Error()))
				}
				fmt.Fprintln(cmd.ErrOrStderr(), res.Messages.T("audio.saved", path))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&speak, "speak", false, "Also synthesize the reply to an mp3 file")
	return cmd
}
