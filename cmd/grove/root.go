package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aretw0/grove"
	"github.com/aretw0/grove/internal/cli"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "grove",
	Short: "Grove orchestrates concurrent agent sessions",
	Long: `Grove is a client-side orchestration layer for agent session backends:
create sessions, chat, warm session pools, and fan out batches of work with
bounded concurrency and automatic retry of transient failures.

Every flag can also be set through the environment with a GROVE_ prefix,
e.g. GROVE_SERVER=http://backend:8000.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("server", "http://localhost:8000", "Base URL of the session backend")
	pf.Duration("timeout", 30*time.Second, "Per-request timeout")
	pf.Int("retries", 3, "Total attempt budget for transient failures")
	pf.Duration("retry-base", 50*time.Millisecond, "Delay before the first retry")
	pf.Float64("retry-multiplier", 2, "Backoff growth factor")
	pf.Duration("retry-max-delay", 5*time.Second, "Cap on the grown backoff delay")
	pf.Int("concurrency", 16, "Maximum in-flight remote calls")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("redis", "", "Redis address for a shared session registry (default: in-memory)")

	v.SetEnvPrefix("GROVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(pf); err != nil {
		panic(err)
	}
}

// wire builds the configured client and logger shared by the commands.
func wire() (cli.Config, *slog.Logger, *grove.Client, error) {
	cfg, err := cli.Load(v)
	if err != nil {
		return cli.Config{}, nil, nil, err
	}
	logger := cfg.Logger()
	client, err := cfg.NewClient(logger)
	if err != nil {
		return cli.Config{}, nil, nil, err
	}
	return cfg, logger, client, nil
}

// fail prints an error and exits non-zero; commands use it for terminal errors.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
