package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/vibration-stack/cli/pkg/output"
	"github.com/telhawk-systems/vibration-stack/common/logging"
	"github.com/telhawk-systems/vibration-stack/common/messaging"
	natsclient "github.com/telhawk-systems/vibration-stack/common/messaging/nats"
)

var eventsCmd = &cobra.Command{
	Use:   "events [sensor_id]",
	Short: "Follow record ingest notifications",
	Long: `Subscribe to the ingest notifications published on NATS and print one line
per stored record. Without a sensor id every sensor is followed.`,
	Example: `  vibectl events
  vibectl events 32418 --nats-url nats://broker:4222 -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().String("nats-url", "", "NATS server URL (default from config)")
	eventsCmd.Flags().Int("count", 0, "stop after this many events, 0 runs until interrupted")
}

func eventsSubject(args []string) (string, error) {
	if len(args) == 0 {
		return messaging.SubjectRecordsIngestedAll, nil
	}
	id, err := parseSensorID(args[0])
	if err != nil {
		return "", err
	}
	return messaging.RecordsIngestedSubject(id), nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	subject, err := eventsSubject(args)
	if err != nil {
		return err
	}
	count, _ := cmd.Flags().GetInt("count")

	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = stringFlag(cmd, "nats-url", cfg.NATSURL)
	natsCfg.Name = "vibectl"
	natsCfg.MaxReconnects = 5

	logger := newLogger(cmd)
	nc, err := natsclient.NewClient(natsCfg, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := printer(cmd)
	events := make(chan messaging.RecordIngested, 64)
	_, err = nc.Subscribe(subject, func(_ context.Context, msg *messaging.Message) error {
		var ev messaging.RecordIngested
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn("skipping malformed event", slog.String("subject", msg.Subject), logging.Error(err))
			return nil
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
		return nil
	})
	if err != nil {
		return err
	}

	if p.Format == output.FormatTable {
		p.Info("Listening on %s", subject)
	}

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := printEvent(p, ev); err != nil {
				return err
			}
			seen++
			if count > 0 && seen >= count {
				return nil
			}
		}
	}
}

func printEvent(p *output.Printer, ev messaging.RecordIngested) error {
	switch p.Format {
	case output.FormatJSON:
		return p.JSON(ev)
	case output.FormatYAML:
		return p.YAML(ev)
	}
	p.Info("sensor=%d timestamp=%d samples=%d record=%s", ev.SensorID, ev.Timestamp, ev.Samples, ev.RecordID)
	return nil
}
