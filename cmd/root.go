package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the replydesk application
var rootCmd = &cobra.Command{
	Use:   "replydesk",
	Short: "Triages meeting requests in your Gmail inbox",
	Long: `replydesk reads unseen messages in your Gmail inbox, classifies them,
and negotiates meeting slots against your Google Calendar. Confirmations
and conflicts are answered automatically; everything else is drafted and
queued for human review.

It can run as:
  - A standalone CLI tool (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "replydesk version %s\n" .Version}}`)

	// If no subcommand is provided, run the process command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "process")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newReviewCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
