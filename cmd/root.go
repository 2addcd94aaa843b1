package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/assistant-session/internal"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	storagePath string
	configPath  string
	memoryStore bool
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assistant-session",
	Short: "Chat with an AI assistant from the terminal and manage chat sessions",
	Long: `A CLI chat client and gateway for AI assistants.

Conversations are kept as sessions in a local store. Replies stream into the
terminal as they arrive, and every session is titled from its first message.

Features:
  • Interactive chat with streaming replies
  • Multiple sessions with search, rename and delete
  • Export to JSONL, Markdown, YAML or JSON and import back
  • A built-in chat gateway server for OpenAI or webhook providers
  • Light and dark themes for rendered markdown

Quick Start:
  assistant-session chat                      # Start an interactive chat
  assistant-session chat "Explain tunneling"  # Ask a single question
  assistant-session list                      # List sessions
  assistant-session show                      # Show the active session
  assistant-session serve                     # Run the chat gateway

Configuration is read from config.yaml or config.toml in the config directory,
from .env files and from the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY,
WEBHOOK_URL, ASSISTANT_GATEWAY_URL, ...).`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", "", "Custom session database path")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (yaml or toml)")
	rootCmd.PersistentFlags().BoolVar(&memoryStore, "memory", false, "Keep sessions in memory only for this run")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
