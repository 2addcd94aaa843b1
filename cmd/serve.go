package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iksnae/assistant-session/internal"
	"github.com/iksnae/assistant-session/internal/provider"
	"github.com/iksnae/assistant-session/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat gateway server",
	Long: `Run the HTTP chat gateway.

Routes:
  GET  /health              status and configured providers
  POST /api/chat            streams the reply as text/plain
  POST /api/generate-title  returns {"title": "..."}

Replies come from OpenAI when OPENAI_API_KEY is set and from WEBHOOK_URL
otherwise; with both set the webhook is tried when OpenAI fails. Titles are
generated with Anthropic or OpenAI when a key is available.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		p, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		var titler provider.Titler
		if cfg.Chat.GenerateTitle {
			titler = buildTitler(cfg)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		internal.LogInfo("Chat gateway using %s on http://%s", p.Name(), cfg.Server.Addr)
		if err := server.New(cfg.Server, p, titler).Run(ctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		internal.LogInfo("Chat gateway stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:3000)")
}
