package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "nwl-auth",
	Short:         "Nations Wars launcher account manager",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}
