package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheBearodactyl/apiodactyl-v2/internal/gate"
	"github.com/TheBearodactyl/apiodactyl-v2/internal/handoff"
	"github.com/TheBearodactyl/apiodactyl-v2/internal/status"
	"github.com/TheBearodactyl/apiodactyl-v2/pkg/logging"
	"github.com/TheBearodactyl/apiodactyl-v2/pkg/probe"
)

// waitCmd is the explicit form of the root command's default action
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the datastore, then exec the server binary",
	Long: `Probes the datastore on a fixed interval until it is reachable (and,
with --smoke, passes an insert+delete smoke test), then replaces the
supervisor's process image with the configured server binary. Exits 1 when
the attempt ceiling is reached or the handoff fails.`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
}

func runWait(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	prober, err := probe.New(cfg.EffectiveURI(), cfg.SmokeCollection)
	if err != nil {
		return err
	}
	defer prober.Close(context.Background())

	if total := waitTotal(cfg); total > 0 {
		logger.Debug(fmt.Sprintf("Worst-case wait before exhaustion: %s", total))
	}

	g := gate.New(prober, logger, gate.Options{
		Interval:       cfg.Interval,
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		Smoke:          cfg.Smoke,
	})

	if cfg.StatusAddr != "" {
		srv := status.New(cfg.StatusAddr, g, prober.Target(), logger)
		g.SetObserver(srv.ObserveAttempt)
		srv.Start()
	}

	// No in-loop cancellation API: a termination signal takes effect at
	// the next blocking-call boundary via default signal disposition.
	if err := g.Wait(context.Background()); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	logger.Info(fmt.Sprintf("Handing off to %s", cfg.ServerPath))
	if err := handoff.Exec(cfg.ServerPath); err != nil {
		// Only reached when the exec itself failed: a packaging defect
		fmt.Fprintf(os.Stderr, "readygate: handoff failed: %v\n", err)
		os.Exit(1)
	}
	return nil
}
