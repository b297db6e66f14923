package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/studycompanion/internal/cli"
	"github.com/cloo-solutions/studycompanion/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "study",
		Short: "Study companion CLI",
		Long: `Upload study materials, ask questions about them and chat with subject tutors.

Environment variables:
  STUDY_API_KEY   API key for authentication (required)
  STUDY_API_URL   API base URL (default: http://localhost:8080)`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AuthCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.DocumentsCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.SubjectsCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.ConversationsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
