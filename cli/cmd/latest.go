package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/vibration-stack/cli/internal/client"
	"github.com/telhawk-systems/vibration-stack/cli/pkg/output"
)

var latestCmd = &cobra.Command{
	Use:   "latest <sensor_id>",
	Short: "Fetch the newest record for a sensor",
	Long:  "Fetch the newest record for a sensor from the relay query endpoint, downsampled by the relay.",
	Example: `  vibectl latest 32418
  vibectl latest 0x7EA2 -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sensorID, err := parseSensorID(args[0])
		if err != nil {
			return err
		}
		relayURL := stringFlag(cmd, "relay-url", cfg.RelayURL)

		series, err := client.NewRelayClient(relayURL).Latest(cmd.Context(), sensorID)
		if err != nil {
			return err
		}

		points, _ := cmd.Flags().GetInt("points")
		return printer(cmd).Print(series, func() *output.Table {
			return seriesTable(series, points)
		})
	},
}

func init() {
	rootCmd.AddCommand(latestCmd)

	latestCmd.Flags().String("relay-url", "", "relay base URL (default from config)")
	latestCmd.Flags().Int("points", 5, "points to list in table output")
}

func seriesTable(s *client.Series, points int) *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("sensor_id", strconv.FormatUint(uint64(s.SensorID), 10))
	t.AddRow("source_time", time.Unix(int64(s.SourceTimestamp), 0).UTC().Format(time.RFC3339))
	t.AddRow("sampling_period", strconv.FormatFloat(s.SamplingPeriod, 'g', -1, 64))
	t.AddRow("original_points", strconv.Itoa(s.OriginalPoints))
	t.AddRow("downsampled_points", strconv.Itoa(s.DownsampledPoints))
	t.AddRow("value_divisor", strconv.FormatFloat(s.ValueDivisor, 'g', -1, 64))
	if s.MaxValue != nil {
		t.AddRow("max_value", strconv.FormatFloat(*s.MaxValue, 'g', -1, 64))
	}
	if s.MinValue != nil {
		t.AddRow("min_value", strconv.FormatFloat(*s.MinValue, 'g', -1, 64))
	}
	for i, pt := range s.Points {
		if i >= points {
			break
		}
		t.AddRow("data["+strconv.Itoa(i)+"]", strconv.FormatFloat(pt.X, 'f', 8, 64)+", "+strconv.FormatFloat(pt.Y, 'g', -1, 64))
	}
	return t
}
