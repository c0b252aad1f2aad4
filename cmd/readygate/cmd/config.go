package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TheBearodactyl/apiodactyl-v2/pkg/config"
)

var configOutput string

// configCmd prints the effective configuration after flags, environment,
// and the optional config file have been merged. Secrets are redacted.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Resolves the configuration exactly as the gate would (flags, then
environment, then config file, then defaults) and prints the result.
Passwords never appear in the output.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configOutput, "output", "o", "table", "output format: table, json, or yaml")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := loadConfig().Redacted()

	switch configOutput {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
	default:
		printConfigTable(cfg)
	}
	return nil
}

func printConfigTable(cfg config.Config) {
	maxAttempts := fmt.Sprintf("%d", cfg.MaxAttempts)
	if cfg.MaxAttempts == 0 {
		maxAttempts = "unbounded"
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Append([]string{"Target", cfg.RedactedURI()})
	table.Append([]string{"Interval", cfg.Interval.String()})
	table.Append([]string{"Max attempts", maxAttempts})
	table.Append([]string{"Attempt timeout", cfg.AttemptTimeout.String()})
	table.Append([]string{"Smoke test", fmt.Sprintf("%t", cfg.Smoke)})
	table.Append([]string{"Smoke collection", cfg.SmokeCollection})
	table.Append([]string{"Server binary", cfg.ServerPath})
	if cfg.StatusAddr != "" {
		table.Append([]string{"Status address", cfg.StatusAddr})
	}
	table.Append([]string{"Log level", cfg.LogLevel})
	table.Render()
}
