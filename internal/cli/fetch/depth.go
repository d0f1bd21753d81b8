package fetch

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/ohlcv/internal/cli/config"
	"github.com/rustyeddy/ohlcv/journal"
)

func newDepthCmd(rc *config.RootConfig) *cobra.Command {
	var (
		pairs      []string
		outputType string
		out        string
		dsn        string
		count      int
		iterations int
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "depth",
		Short: "Poll order books into the SQL store",
		Long: `Snapshot the order book of each pair and store every level in the
raw_orderbook table. --iterations 0 polls until interrupted.

Example:
  ohlcv fetch depth --pair XXBTZUSD --pair XETHZUSD --db books.db --iterations 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.Cfg
			flags := cmd.Flags()
			if !flags.Changed("pair") {
				pairs = cfg.Kraken.Pairs
			}
			// A csv output in the config says nothing about where books go.
			if !flags.Changed("output-type") && cfg.Output.Type != "csv" {
				outputType = cfg.Output.Type
			}
			if !flags.Changed("db") && cfg.Output.Type == "sqlite" {
				out = cfg.Output.Path
			}
			if !flags.Changed("dsn") {
				dsn = cfg.Output.DSN
			}
			if !flags.Changed("count") {
				count = cfg.Kraken.DepthCount
			}
			if !flags.Changed("interval") {
				_, _, poll, err := cfg.Kraken.Durations()
				if err != nil {
					return err
				}
				interval = poll
			}
			if len(pairs) == 0 {
				return fmt.Errorf("missing --pair")
			}

			driver, src := "sqlite3", out
			switch outputType {
			case "sqlite":
				if out == "" {
					return fmt.Errorf("missing --db")
				}
			case "postgres":
				driver, src = "postgres", dsn
			default:
				return fmt.Errorf("order books need a sqlite or postgres output, not %q", outputType)
			}

			client, err := newClient(cmd, rc)
			if err != nil {
				return err
			}
			j, err := journal.OpenSQL(driver, src)
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := cmd.Context()
			total := 0
			for i := 0; iterations == 0 || i < iterations; i++ {
				if i > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(interval):
					}
				}
				for _, pair := range pairs {
					ob, err := client.Depth(ctx, pair, count)
					if err != nil {
						return err
					}
					n, err := j.RecordOrderBook(ctx, ob)
					if err != nil {
						return fmt.Errorf("store %s book: %w", pair, err)
					}
					total += n
					rc.Log.WithFields(logrus.Fields{"pair": pair, "levels": n}).Info("order book stored")
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d order book levels stored\n", total)
			return j.Close()
		},
	}

	cmd.Flags().StringSliceVar(&pairs, "pair", nil, "pair to poll, repeatable (default kraken.pairs)")
	cmd.Flags().StringVar(&outputType, "output-type", "sqlite", "sqlite|postgres")
	cmd.Flags().StringVar(&out, "db", "", "SQLite database (default output.path)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string (default output.dsn)")
	cmd.Flags().IntVar(&count, "count", 0, "levels per side, 0 for the exchange default")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "snapshots per pair, 0 for no limit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "wait between snapshots (default kraken.poll_interval)")

	return cmd
}
