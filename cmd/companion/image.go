package main

import (
	"fmt"
	"path/filepath"

	"companion/internal/media"
	"companion/internal/session"

	"github.com/spf13/cobra"
)

func newImageCmd(c *cli) *cobra.Command {
	var (
		mode     string
		question string
	)
	cmd := &cobra.Command{
		Use:   "image <path>",
		Short: "Read text from an image (ocr) or describe it (vision)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := session.ParseMode(mode)
			if err != nil {
				return err
			}
			res, s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer res.Close()

			upload, err := media.StageFile(filepath.Join(res.Config.Storage.BaseDir, "uploads"), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), res.Messages.T("image.working"))
			turn, err := res.Manager.AnalyzeImage(cmd.Context(), s, upload, m, question)
			if turn.Content != "" {
				fmt.Fprintln(cmd.OutOrStdout(), turn.Content)
			}
			if err != nil {
				return fmt.Errorf("save history: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "vision", "Analysis mode: vision or ocr")
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question for vision mode")
	return cmd
}
