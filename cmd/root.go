// Package cmd defines the travo CLI.
package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "travo",
	Short: "Travo - travel assistant API server",
	Long: `Travo is the backend for the Travo travel assistant.

It serves a JSON/SSE API that classifies each chat message into a
response strategy (greeting, travel info, trip planning), augments
answers with live web search, and streams responses token by token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// With no subcommand, start the server.
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	// A local .env is a development convenience; absence is normal.
	_ = godotenv.Load()

	return rootCmd.Execute()
}
