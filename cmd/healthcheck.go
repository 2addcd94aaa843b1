package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	healthcheckDetails bool
)

// gatewayProbeTimeout bounds the gateway /health request
const gatewayProbeTimeout = 5 * time.Second

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check configuration, storage and the chat gateway",
	Long: `Check the health of assistant-session by verifying:
  • Config and data path detection
  • Session storage access
  • Provider credentials
  • Chat gateway reachability (when ASSISTANT_GATEWAY_URL is set)

This command is useful for debugging setup issues, especially in CI/CD environments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 Assistant Session Health Check"))
		fmt.Fprintln(out)

		// Step 1: Config and paths
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		cfg, paths, err := loadConfig()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to load configuration:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if healthcheckDetails {
			source := cfg.Source
			if source == "" {
				source = "(defaults)"
			}
			fmt.Fprintf(out, "   Config file: %s\n", source)
			fmt.Fprintf(out, "   Config dir: %s\n", paths.ConfigDir)
			fmt.Fprintf(out, "   Data dir: %s\n", paths.DataDir)
		}
		fmt.Fprintln(out)

		// Step 2: Storage
		fmt.Fprintln(out, infoStyle.Render("Step 2: Opening session storage..."))
		storageOK := false
		sessionCount := 0
		a, err := openApp()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to open storage:"), err)
		} else {
			storageOK = true
			sessionCount = len(a.store.Sessions())
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ %s storage ready, %d session(s)", a.backend, sessionCount)))
			if healthcheckDetails {
				fmt.Fprintf(out, "   Database: %s\n", paths.DBPath)
				fmt.Fprintf(out, "   Active session: %s\n", a.store.ActiveID())
			}
			if lastErr := a.store.LastError(); lastErr != nil {
				fmt.Fprintln(out, warningStyle.Render("⚠️  Stored sessions could not be fully read:"), lastErr)
			}
			if err := a.Close(); err != nil {
				fmt.Fprintln(out, warningStyle.Render("⚠️  Failed to close storage:"), err)
			}
		}
		fmt.Fprintln(out)

		// Step 3: Providers
		fmt.Fprintln(out, infoStyle.Render("Step 3: Checking providers..."))
		providerOK := cfg.Gateway.URL != ""
		if p, err := buildProvider(cfg); err != nil {
			if providerOK {
				fmt.Fprintln(out, warningStyle.Render("⚠️  No local provider configured (the remote gateway is used)"))
			} else {
				fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
			}
		} else {
			providerOK = true
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Chat provider: %s", p.Name())))
			if healthcheckDetails && cfg.OpenAI.APIKey != "" {
				fmt.Fprintf(out, "   OpenAI model: %s (%s)\n", cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
			}
		}
		switch {
		case !cfg.Chat.GenerateTitle:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Title generation disabled"))
		case cfg.Gateway.TitleURL != "" || buildTitler(cfg) != nil:
			fmt.Fprintln(out, successStyle.Render("✅ Title generation available"))
		default:
			fmt.Fprintln(out, warningStyle.Render("⚠️  No title provider; sessions keep their derived titles"))
		}
		fmt.Fprintln(out)

		// Step 4: Gateway
		gatewayOK := true
		if cfg.Gateway.URL != "" {
			fmt.Fprintln(out, infoStyle.Render("Step 4: Probing chat gateway..."))
			health, err := probeGateway(cmd.Context(), cfg.Gateway.URL)
			if err != nil {
				gatewayOK = false
				fmt.Fprintln(out, errorStyle.Render("❌ Gateway unreachable:"), err)
			} else {
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Gateway %s (providers: %v)", health.Status, health.Providers)))
			}
			fmt.Fprintln(out)
		}

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)

		switch {
		case storageOK && providerOK && gatewayOK:
			fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
			fmt.Fprintln(out, successStyle.Render("   • Storage: Available"))
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("   • Sessions: %d found", sessionCount)))
			return nil
		case storageOK && !providerOK:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Storage available but no provider configured"))
			fmt.Fprintln(out, "   • Sessions can be listed, shown and exported")
			fmt.Fprintln(out, "   • Set OPENAI_API_KEY, WEBHOOK_URL or ASSISTANT_GATEWAY_URL to chat")
			return nil
		}
		fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
		if !storageOK {
			fmt.Fprintln(out, "   • Cannot access session storage")
		}
		if !gatewayOK {
			fmt.Fprintln(out, "   • Cannot reach the chat gateway")
		}
		return fmt.Errorf("health check failed")
	},
}

// gatewayHealth mirrors the gateway's GET /health reply
type gatewayHealth struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

// probeGateway requests /health on the host of a chat endpoint
func probeGateway(ctx context.Context, endpoint string) (gatewayHealth, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return gatewayHealth{}, fmt.Errorf("invalid gateway URL: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, gatewayProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return gatewayHealth{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return gatewayHealth{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gatewayHealth{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	var health gatewayHealth
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&health); err != nil {
		return gatewayHealth{}, fmt.Errorf("failed to decode health reply: %w", err)
	}
	return health, nil
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckDetails, "details", false, "Show detailed diagnostic information")
}
