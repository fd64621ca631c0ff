package main

import (
	"os"
	"strings"

	"companion/internal/bootstrap"
	"companion/internal/config"
	"companion/internal/session"

	"github.com/spf13/cobra"
)

// cli 持有全局 flag 的值
// cli holds the values of the persistent flags
type cli struct {
	configPath string
	userID     string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "companion",
		Short:         "Rafiq, a personal conversational companion",
		Long:          "A personal companion that remembers each user's conversation, replies in the user's language, reads images and speaks its replies.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to config JSON/JSONC (default: $COMPANION_CONFIG_PATH or ./companion.config.json)")
	root.PersistentFlags().StringVarP(&c.userID, "user", "u", "", "User id whose conversation is used (default: session.user_id)")

	chat := newChatCmd(c)
	root.RunE = chat.RunE
	root.Flags().AddFlagSet(chat.Flags())

	root.AddCommand(
		chat,
		newSayCmd(c),
		newImageCmd(c),
		newHistoryCmd(c),
		newModelsCmd(c),
	)
	return root
}

func (c *cli) load() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if id := strings.TrimSpace(c.userID); id != "" {
		cfg.Session.UserID = id
	}
	return cfg, nil
}

// build 加载配置并组装所有组件
// build loads the config and wires every component
func (c *cli) build(cmd *cobra.Command) (*bootstrap.BuildResult, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	projectDir, _ := os.Getwd()
	return bootstrap.Build(cmd.Context(), cfg, bootstrap.Options{
		Warn:       cmd.ErrOrStderr(),
		ProjectDir: projectDir,
	})
}

func (c *cli) open(cmd *cobra.Command) (*bootstrap.BuildResult, *session.Session, error) {
	res, err := c.build(cmd)
	if err != nil {
		return nil, nil, err
	}
	return res, res.OpenSession(cmd.Context()), nil
}
