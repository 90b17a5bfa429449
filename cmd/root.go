// Package cmd wires the CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "inventoryd",
	Short: "AI-assisted inventory backend",
	Long: `inventoryd is the backend for the AI inventory assistant.

It serves the JSON API (item catalog, document uploads, activity feed)
and the assistant endpoints backed by Gemini. Running it with no
arguments starts the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
