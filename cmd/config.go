package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file, .env files and
environment variables have been applied. API keys are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, paths, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		source := cfg.Source
		if source == "" {
			source = "(defaults)"
		}
		fmt.Fprintf(out, "# config: %s\n# database: %s\n", source, paths.DBPath)

		data, err := cfg.Redacted().YAML()
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
