package main

import (
	"video-rag-be/internal/config"

	"github.com/spf13/cobra"
)

// commandContext loads configuration once, on first use.
type commandContext struct {
	cfg *config.Config
}

func (c *commandContext) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Load()
	}
	return c.cfg
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "framectl",
		Short:         "Operate and inspect the video frame Q&A pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newRankCommand())
	rootCmd.AddCommand(newThresholdsCommand(ctx))
	rootCmd.AddCommand(newAskCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))

	return rootCmd
}
