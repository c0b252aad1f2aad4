package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/TheBearodactyl/apiodactyl-v2/pkg/probe"
)

var checkOutput string

// checkCmd runs a single diagnostic probe without retrying or handing off
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the datastore once and report the result",
	Long: `Runs one connectivity check (and, with --smoke, one insert+delete
smoke test) against the configured datastore and prints the outcome.
Useful for debugging a failing gate from inside the container. Exits 1
when the probe fails.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "table", "output format: table or json")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	prober, err := probe.New(cfg.EffectiveURI(), cfg.SmokeCollection)
	if err != nil {
		return err
	}
	defer prober.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AttemptTimeout)
	defer cancel()

	result := probe.Check(ctx, prober, cfg.Smoke)

	if checkOutput == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printCheckTable(result)
	}

	if !result.OK {
		os.Exit(1)
	}
	return nil
}

func printCheckTable(result probe.Result) {
	ok := "no"
	if result.OK {
		ok = "yes"
	}
	smoke := "skipped"
	if result.Smoke {
		smoke = "ran"
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Append([]string{"Target", result.Target})
	table.Append([]string{"Kind", string(result.Kind)})
	table.Append([]string{"Reachable", ok})
	table.Append([]string{"Smoke test", smoke})
	table.Append([]string{"Latency", fmt.Sprintf("%d ms", result.LatencyMs)})
	table.Append([]string{"Checked at", result.CheckedAt.Format("2006-01-02 15:04:05 MST")})
	if result.Error != "" {
		table.Append([]string{"Error", result.Error})
	}
	table.Render()
}
