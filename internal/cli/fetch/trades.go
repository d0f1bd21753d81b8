package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/ohlcv/internal/cli/config"
	"github.com/rustyeddy/ohlcv/internal/feed"
	"github.com/rustyeddy/ohlcv/internal/kraken"
)

func newTradesCmd(rc *config.RootConfig) *cobra.Command {
	var (
		pair  string
		out   string
		since string
	)

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Append a pair's trade history to a CSV file",
		Long: `Page through the public trade history of a pair and append every
trade to --out. Without --since the download resumes after the last trade
already in the file.

Example:
  ohlcv fetch trades --pair XXBTZUSD --out xbtusd.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pair == "" {
				pair = rc.Cfg.Input.Pair
			}
			if out == "" {
				out = rc.Cfg.Input.Path
			}
			if pair == "" {
				return fmt.Errorf("missing --pair")
			}
			switch strings.ToLower(filepath.Ext(out)) {
			case ".xz", ".lzma":
				return fmt.Errorf("cannot append to compressed file %s", out)
			}

			_, backoff, _, err := rc.Cfg.Kraken.Durations()
			if err != nil {
				return err
			}
			client, err := newClient(cmd, rc)
			if err != nil {
				return err
			}

			if since == "" {
				if since, err = feed.LastTradeSince(out); err != nil {
					return fmt.Errorf("resume point: %w", err)
				}
			}

			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return err
			}
			defer f.Close()

			tw := feed.NewTradeWriter(f)
			info, err := f.Stat()
			if err != nil {
				return err
			}
			if info.Size() == 0 {
				if err := tw.WriteHeader(); err != nil {
					return err
				}
			}

			n, last, err := client.DownloadTrades(cmd.Context(), kraken.DownloadOptions{
				Pair:    pair,
				Since:   since,
				Backoff: backoff,
			}, tw)
			if ferr := tw.Flush(); err == nil {
				err = ferr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d trades appended to %s (next since=%s)\n", n, out, last)
			if err != nil {
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVar(&pair, "pair", "", "pair to download (default input.pair)")
	cmd.Flags().StringVar(&out, "out", "", "CSV file to append to (default input.path)")
	cmd.Flags().StringVar(&since, "since", "", "resume cursor in nanoseconds; 0 for the full history")

	return cmd
}
