package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/vibration-stack/cli/internal/client"
	"github.com/telhawk-systems/vibration-stack/cli/pkg/output"
)

var watchCmd = &cobra.Command{
	Use:   "watch <sensor_id>",
	Short: "Stream live records for a sensor from the relay",
	Long: `Open a relay stream, select a sensor and print the first point of every
delivery. Errors reported by the relay are printed as they arrive and the
stream stays open.`,
	Example: `  vibectl watch 32418
  vibectl watch 0x7EA2 --count 5 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("relay-url", "", "relay base URL (default from config)")
	watchCmd.Flags().Int("count", 0, "stop after this many series, 0 runs until interrupted")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sensorID, err := parseSensorID(args[0])
	if err != nil {
		return err
	}
	count, _ := cmd.Flags().GetInt("count")
	relayURL := stringFlag(cmd, "relay-url", cfg.RelayURL)

	p := printer(cmd)
	if p.Format == output.FormatTable {
		p.Info("Watching sensor %d on %s", sensorID, relayURL)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	received := 0
	return client.NewRelayClient(relayURL).Watch(ctx, sensorID, func(d client.Delivery) error {
		if d.Err != nil {
			p.Warn("%s: %s", d.Err.Kind, d.Err.Details)
			return nil
		}
		if err := printDelivery(p, d.Series); err != nil {
			return err
		}
		received++
		if count > 0 && received >= count {
			return client.ErrStop
		}
		return nil
	})
}

// streamLine is the per-delivery summary.
type streamLine struct {
	SensorID        uint32       `json:"sensor_id" yaml:"sensor_id"`
	SourceTimestamp uint64       `json:"source_timestamp" yaml:"source_timestamp"`
	Points          int          `json:"downsampled_points" yaml:"downsampled_points"`
	First           client.Point `json:"first" yaml:"first"`
}

func printDelivery(p *output.Printer, s *client.Series) error {
	line := streamLine{
		SensorID:        s.SensorID,
		SourceTimestamp: s.SourceTimestamp,
		Points:          s.DownsampledPoints,
	}
	if len(s.Points) > 0 {
		line.First = s.Points[0]
	}

	switch p.Format {
	case output.FormatJSON:
		return p.JSON(line)
	case output.FormatYAML:
		return p.YAML(line)
	}
	ts := time.Unix(int64(s.SourceTimestamp), 0).UTC().Format(time.RFC3339)
	p.Info("%s  sensor=%d points=%d first=(%.8f, %g)", ts, line.SensorID, line.Points, line.First.X, line.First.Y)
	return nil
}
