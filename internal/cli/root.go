package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/ohlcv/internal/cli/config"
	"github.com/rustyeddy/ohlcv/internal/cli/fetch"
	"github.com/rustyeddy/ohlcv/internal/cli/resample"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

func NewRootCmd() *cobra.Command {
	rc := &config.RootConfig{}

	cmd := &cobra.Command{
		Use:           "ohlcv",
		Short:         "Turn trade history into OHLCV candles and collect it from Kraken",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "", "Log level: debug|info|warn|error (overrides log.level)")
	cmd.PersistentFlags().StringVar(&rc.LogFormat, "log-format", "", "Log format: text|json (overrides log.format)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return rc.Load(cmd.ErrOrStderr())
	}

	cmd.AddCommand(
		resample.New(rc),
		fetch.New(rc),
		newConfigCmd(),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ohlcv %s\n", Version)
		},
	})

	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
