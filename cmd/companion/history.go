package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"companion/internal/storage"

	"github.com/spf13/cobra"
)

func newHistoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage stored conversations",
	}
	cmd.AddCommand(
		newHistoryShowCmd(c),
		newHistoryExportCmd(c),
		newHistoryImportCmd(c),
		newHistoryClearCmd(c),
		newHistoryListCmd(c),
	)
	return cmd
}

func newHistoryShowCmd(c *cli) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the conversation of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer res.Close()

			turns := s.Turns()
			if last > 0 && last < len(turns) {
				turns = turns[len(turns)-last:]
			}
			out := cmd.OutOrStdout()
			for _, t := range turns {
				fmt.Fprintf(out, "[%s] %s\n\n", t.Role, t.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 0, "Only show the last n turns")
	return cmd
}

func newHistoryExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the conversation as JSON (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.build(cmd)
			if err != nil {
				return err
			}
			defer res.Close()

			userID := res.Config.Session.UserID
			if len(args) == 1 {
				if err := storage.ExportFile(cmd.Context(), res.Store, userID, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %s to %s\n", userID, args[0])
				return nil
			}
			rec, err := storage.Export(cmd.Context(), res.Store, userID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(rec)
		},
	}
}

func newHistoryImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace a stored conversation with one from a JSON export",
		Long:  "Replace a stored conversation with one from a JSON export. --user overrides the user id in the file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.build(cmd)
			if err != nil {
				return err
			}
			defer res.Close()

			rec, err := storage.ImportFile(cmd.Context(), res.Store, args[0], c.userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d turns for %s\n", len(rec.Turns), rec.UserID)
			return nil
		},
	}
}

func newHistoryClearCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Reset the conversation to a fresh greeting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer res.Close()

			if err := res.Manager.Clear(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Messages.T("session.cleared"))
			return nil
		},
	}
}

func newHistoryListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.build(cmd)
			if err != nil {
				return err
			}
			defer res.Close()

			infos, err := res.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tTURNS\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%s\n", info.UserID, info.Turns, info.UpdatedAt)
			}
			return w.Flush()
		},
	}
}
