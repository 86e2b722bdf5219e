package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxchat application
var rootCmd = &cobra.Command{
	Use:   "inboxchat",
	Short: "Chat with your Gmail inbox from the terminal",
	Long: `inboxchat is a terminal client for the inbox assistant backend. Sign in
with Google, then ask for your emails in plain language, get a categorized
daily digest, send AI-drafted replies and move messages to the trash.

It can run as:
  - An interactive dashboard (default)
  - One-shot commands for scripts (emails, digest, chat, reply, delete, send)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// flags holds the persistent flags shared by every command.
var flags globalFlags

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxchat version %s\n" .Version}}`)

	// If no subcommand is provided, open the dashboard by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "dashboard")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags.register(rootCmd)

	rootCmd.AddCommand(newDashboardCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newEmailsCmd())
	rootCmd.AddCommand(newDigestCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newReplyCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
