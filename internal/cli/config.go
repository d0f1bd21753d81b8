package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/ohlcv/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  ohlcv config init --output ohlcv.yaml
  ohlcv config validate --file ohlcv.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  ohlcv --config %s resample\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "ohlcv.yaml", "output config file path")

	var file string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(file)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", file)
			fmt.Fprintf(out, "  Resample: %s (interpolate=%t, flush=%t)\n",
				cfg.Resample.Granularity, cfg.Resample.Interpolate, cfg.Resample.FlushTrailing)
			fmt.Fprintf(out, "  Input: %s [%s]\n", cfg.Input.Path, cfg.Input.Pair)
			fmt.Fprintf(out, "  Output: %s\n", cfg.Output.Type)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&file, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
