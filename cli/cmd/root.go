package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/vibration-stack/cli/internal/config"
	"github.com/telhawk-systems/vibration-stack/cli/pkg/output"
	"github.com/telhawk-systems/vibration-stack/common/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vibectl",
	Short: "Vibration stack CLI",
	Long: `vibectl is the command-line interface for the vibration stack.

Simulate sensors against the ingest listener, watch live streams from the
relay, fetch the latest record for a sensor and follow ingest events.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("output") {
			loaded.Output, _ = cmd.Flags().GetString("output")
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		output.New("").Error("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.vibectl/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().String("log-level", "info", "log level for diagnostics on stderr")
}

func printer(cmd *cobra.Command) *output.Printer {
	return &output.Printer{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr(), Format: cfg.Output}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(level), "text").
		With(logging.Service("vibectl")).Logger
}

// parseSensorID accepts decimal or 0x-prefixed hex ids.
func parseSensorID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid sensor id %q: must be an unsigned 32-bit integer", raw)
	}
	return uint32(id), nil
}

// stringFlag returns the flag value when it was set, otherwise fallback.
func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}
