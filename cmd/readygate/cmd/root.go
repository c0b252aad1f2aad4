package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TheBearodactyl/apiodactyl-v2/pkg/config"
)

var cfgFile string

// rootCmd represents the base command. Running it with no subcommand is
// the same as `readygate wait`: the container entrypoint stays a single
// word.
var rootCmd = &cobra.Command{
	Use:   "readygate",
	Short: "Datastore readiness gate for the Apiodactyl server",
	Long: `readygate blocks until the backing datastore is reachable (and,
optionally, passes a write+delete smoke test), then replaces itself with
the server binary so the server inherits the supervisor's PID and signal
disposition.`,
	SilenceUsage: true,
	RunE:         runWait,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./readygate.yaml)")
	rootCmd.PersistentFlags().String("uri", "", "datastore connection URI (mongodb://, postgres://, sqlite://; default from DATABASE_URL/MONGODB_URL)")
	rootCmd.PersistentFlags().Duration("interval", config.DefaultInterval, "fixed delay between probe attempts")
	rootCmd.PersistentFlags().Int("max-attempts", config.DefaultMaxAttempts, "attempt ceiling before giving up (0 = retry forever)")
	rootCmd.PersistentFlags().Duration("attempt-timeout", config.DefaultAttemptTimeout, "per-attempt timeout")
	rootCmd.PersistentFlags().Bool("smoke", false, "run an insert+delete smoke test after the connectivity check")
	rootCmd.PersistentFlags().String("smoke-collection", config.DefaultSmokeCollection, "scratch collection/table for the smoke test")
	rootCmd.PersistentFlags().String("server", config.DefaultServerPath, "server binary to exec once the datastore is ready")
	rootCmd.PersistentFlags().String("status-addr", "", "serve /healthz and /metrics on this address while waiting (empty = off)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit JSON log lines")

	viper.BindPFlag("uri", rootCmd.PersistentFlags().Lookup("uri"))
	viper.BindPFlag("interval", rootCmd.PersistentFlags().Lookup("interval"))
	viper.BindPFlag("max_attempts", rootCmd.PersistentFlags().Lookup("max-attempts"))
	viper.BindPFlag("attempt_timeout", rootCmd.PersistentFlags().Lookup("attempt-timeout"))
	viper.BindPFlag("smoke", rootCmd.PersistentFlags().Lookup("smoke"))
	viper.BindPFlag("smoke_collection", rootCmd.PersistentFlags().Lookup("smoke-collection"))
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("status_addr", rootCmd.PersistentFlags().Lookup("status-addr"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
		return
	}

	// Optional local config, ignored when absent
	v.AddConfigPath(".")
	v.SetConfigName("readygate")
	v.SetConfigType("yaml")
	_ = v.ReadInConfig()
}

// loadConfig builds the immutable runtime configuration
func loadConfig() config.Config {
	return config.Load(viper.GetViper())
}

// waitTotal is a convenience for log lines: the worst-case wait when bounded
func waitTotal(cfg config.Config) time.Duration {
	if cfg.MaxAttempts == 0 {
		return 0
	}
	return time.Duration(cfg.MaxAttempts) * cfg.Interval
}
