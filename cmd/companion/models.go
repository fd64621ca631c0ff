package main

import (
	"fmt"
	"os"

	"companion/internal/config"

	"github.com/spf13/cobra"
)

func newModelsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or choose the chat model",
	}
	cmd.AddCommand(newModelsListCmd(c), newModelsSetCmd(c))
	return cmd
}

func newModelsListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured and provider models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.build(cmd)
			if err != nil {
				return err
			}
			defer res.Close()

			models, listErr := res.Runner.ListModels(cmd.Context())
			current := res.Manager.CurrentModel()
			out := cmd.OutOrStdout()
			for _, m := range models {
				marker := "  "
				if m == current {
					marker = "* "
				}
				fmt.Fprintln(out, marker+m)
			}
			if listErr != nil {
				if len(models) == 0 {
					return fmt.Errorf("%s", res.Messages.T("error.models", listErr.Error()))
				}
				fmt.Fprintln(cmd.ErrOrStderr(), res.Messages.T("error.models", listErr.Error()))
			}
			return nil
		},
	}
}

func newModelsSetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set <model>",
		Short: "Save the chat model in ./.companion/config.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			if err := config.WriteProviderModel(dir, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model set to %s\n", args[0])
			return nil
		},
	}
}
