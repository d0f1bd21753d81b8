package resample

import (
	"github.com/spf13/cobra"

	"github.com/rustyeddy/ohlcv/aggregate"
	"github.com/rustyeddy/ohlcv/internal/cli/config"
	"github.com/rustyeddy/ohlcv/internal/resample"
	"github.com/rustyeddy/ohlcv/journal"
)

func New(rc *config.RootConfig) *cobra.Command {
	var (
		in          string
		out         string
		outputType  string
		dsn         string
		pair        string
		granularity string
		interpolate bool
		flush       bool
	)

	cmd := &cobra.Command{
		Use:   "resample",
		Short: "Aggregate a trades CSV into OHLCV candles",
		Long: `Read trades (price,volume,time,...) and write one candle per window.
Empty windows between trades are filled by linear interpolation unless
--interpolate=false. The last, still open window is dropped unless --flush.

Flags override the matching keys of the config file.

Example:
  ohlcv resample --in trades.csv.xz --granularity M5 --out candles.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *rc.Cfg
			flags := cmd.Flags()
			if flags.Changed("in") {
				cfg.Input.Path = in
			}
			if flags.Changed("pair") {
				cfg.Input.Pair = pair
			}
			if flags.Changed("granularity") {
				cfg.Resample.Granularity = granularity
			}
			if flags.Changed("interpolate") {
				cfg.Resample.Interpolate = interpolate
			}
			if flags.Changed("flush") {
				cfg.Resample.FlushTrailing = flush
			}
			if flags.Changed("output-type") {
				cfg.Output.Type = outputType
			}
			if flags.Changed("out") {
				cfg.Output.Path = out
			}
			if flags.Changed("dsn") {
				cfg.Output.DSN = dsn
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			g, err := cfg.Resample.Window()
			if err != nil {
				return err
			}

			j, err := journal.Open(cfg.Output.Type, cfg.Output.Path, cfg.Output.DSN)
			if err != nil {
				return err
			}
			rep, runErr := resample.Run(cmd.Context(), resample.Options{
				Input: cfg.Input.Path,
				Pair:  cfg.Input.Pair,
				Aggregate: aggregate.Config{
					Granularity: g,
					Interpolate: cfg.Resample.Interpolate,
				},
				Flush:   cfg.Resample.FlushTrailing,
				Journal: j,
				Log:     rc.Log,
			})
			closeErr := j.Close()
			if rep.RunID != "" {
				rep.Print(cmd.OutOrStdout())
			}
			if runErr != nil {
				return runErr
			}
			return closeErr
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "trades CSV (.xz/.lzma allowed)")
	cmd.Flags().StringVar(&out, "out", "", "candles CSV or SQLite file")
	cmd.Flags().StringVar(&outputType, "output-type", "", "csv|sqlite|postgres")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string")
	cmd.Flags().StringVar(&pair, "pair", "", "pair recorded with the run")
	cmd.Flags().StringVarP(&granularity, "granularity", "g", "", "M1|M5|M30|H1|H5|D1|D10")
	cmd.Flags().BoolVar(&interpolate, "interpolate", true, "fill empty windows")
	cmd.Flags().BoolVar(&flush, "flush", false, "emit the trailing window")

	return cmd
}
