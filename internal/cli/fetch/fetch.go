package fetch

import (
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/ohlcv/internal/cli/config"
	"github.com/rustyeddy/ohlcv/internal/kraken"
)

func New(rc *config.RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download market data from Kraken",
	}

	cmd.PersistentFlags().String("base-url", "", "Kraken API base URL (overrides kraken.base_url)")

	cmd.AddCommand(
		newTradesCmd(rc),
		newDepthCmd(rc),
	)
	return cmd
}

// newClient builds a client from the kraken section of the config.
func newClient(cmd *cobra.Command, rc *config.RootConfig) (*kraken.Client, error) {
	kc := rc.Cfg.Kraken
	decay, _, _, err := kc.Durations()
	if err != nil {
		return nil, err
	}

	c := &kraken.Client{
		BaseURL: kc.BaseURL,
		Log:     rc.Log,
		Limiter: rate.NewLimiter(rate.Every(decay), kc.CallsPerWindow),
	}
	if u, _ := cmd.Flags().GetString("base-url"); u != "" {
		c.BaseURL = u
	}
	if kc.KeyFile != "" {
		if err := c.LoadKey(kc.KeyFile); err != nil {
			return nil, err
		}
	}
	return c, nil
}
