package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/vibration-stack/cli/internal/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send synthetic sensor frames to the ingest listener",
	Long: `Send one vibration frame per interval to the ingest listener, the way a
field sensor would. Samples are drawn from a gaussian (default mean 20000,
stddev 3000) or a uniform distribution over the int16 range.`,
	Example: `  vibectl simulate
  vibectl simulate --sensor-id 0x7EA2 --interval 500ms --count 10
  vibectl simulate --distribution uniform --per-frame-connection`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.String("addr", "", "ingest listener address (default from config)")
	f.String("sensor-id", "", "sensor id, decimal or 0x hex (default from config)")
	f.Duration("interval", 0, "time between frames (default from config)")
	f.Int("count", 0, "frames to send, 0 runs until interrupted")
	f.Int("time-samples", 0, "time-domain samples per frame (default from config)")
	f.Int("freq-samples", 0, "frequency-domain samples per frame (default from config)")
	f.String("distribution", "", "gaussian or uniform (default from config)")
	f.Bool("per-frame-connection", false, "open a new connection for every frame")
	f.Int64("seed", 0, "random seed, 0 picks one")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	sc := cfg.Simulate
	f := cmd.Flags()

	if f.Changed("sensor-id") {
		raw, _ := f.GetString("sensor-id")
		id, err := parseSensorID(raw)
		if err != nil {
			return err
		}
		sc.SensorID = id
	}
	if f.Changed("interval") {
		sc.Interval, _ = f.GetDuration("interval")
	}
	if f.Changed("time-samples") {
		sc.TimeSamples, _ = f.GetInt("time-samples")
	}
	if f.Changed("freq-samples") {
		sc.FreqSamples, _ = f.GetInt("freq-samples")
	}
	if f.Changed("per-frame-connection") {
		sc.PerFrameConnection, _ = f.GetBool("per-frame-connection")
	}
	sc.Distribution = stringFlag(cmd, "distribution", sc.Distribution)

	// Re-validate with the flag overrides applied.
	check := *cfg
	check.Simulate = sc
	if err := check.Validate(); err != nil {
		return err
	}

	seed, _ := f.GetInt64("seed")
	count, _ := f.GetInt("count")

	gen, err := simulator.NewGenerator(seed, simulator.Distribution(sc.Distribution), sc.Mean, sc.StdDev)
	if err != nil {
		return err
	}

	simCfg := simulator.Config{
		Addr:               stringFlag(cmd, "addr", cfg.IngestAddr),
		SensorID:           sc.SensorID,
		SamplingPeriod:     float32(sc.SamplingPeriod),
		TimeSamples:        sc.TimeSamples,
		FreqSamples:        sc.FreqSamples,
		Interval:           sc.Interval,
		Count:              count,
		PerFrameConnection: sc.PerFrameConnection,
	}

	p := printer(cmd)
	p.Info("Simulating sensor %d (0x%X) -> %s every %v", simCfg.SensorID, simCfg.SensorID, simCfg.Addr, simCfg.Interval)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats := simulator.New(simCfg, gen, newLogger(cmd)).Run(ctx)

	if stats.Failed > 0 {
		p.Warn("%d frames failed", stats.Failed)
	}
	p.Success("Sent %d frames in %v", stats.Sent, time.Since(start).Round(time.Millisecond))
	if stats.Sent == 0 && stats.Failed > 0 && ctx.Err() == nil {
		return errNothingSent
	}
	return nil
}

var errNothingSent = errors.New("no frames were delivered")
