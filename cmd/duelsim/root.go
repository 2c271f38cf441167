package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
	jsonLogs   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:          "duelsim",
		Short:        "Simulate paddle duels between bots",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "game config file (YAML or JSON); DUEL_* variables override it")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.PersistentFlags().BoolVar(&flags.jsonLogs, "json-logs", false, "write logs as JSON lines")

	cmd.AddCommand(newRunCmd(flags))
	return cmd
}
