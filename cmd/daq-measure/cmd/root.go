package cmd

import (
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/engine/manager"
	"Go2DAQSpectra/internal/logging"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd runs a single measurement without the control API.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daq-measure",
		Short: "Run one measurement session and store its record.",
		Long: `daq-measure runs one measurement session against the configured device
and writes the record to the configured store.

Settings come from the config file and DAQ_* environment variables; the flags
below override them. Press Ctrl+C to stop early; the session still drains and
the record is finalized.`,
		SilenceUsage: true,
		RunE:         run,
	}

	f := cmd.Flags()
	f.String("config", "configs/config.yaml", "Path to the configuration file")
	f.Duration("duration", 0, "Measurement duration (10s to 1h)")
	f.Int("rate", 0, "Sample rate in Hz")
	f.String("voltage", "", "Input range: Voltage5V or Voltage10V")
	f.Int("elements", 0, "Samples per read request (10 to 1000)")
	f.IntSlice("channels", nil, "Channels to read, 1 to 8")
	f.Bool("raw", false, "Keep full bursts instead of averaging each one")
	f.Bool("quiet", false, "Do not print status lines")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg.Session); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		logger = zap.NewNop()
	}

	mgr, err := manager.NewManager(cfg, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	id, err := mgr.Controller.Start(ctx, mgr.Settings.Snapshot())
	if err != nil {
		mgr.Stop(ctx)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Measuring record %s\n", id)

	// Ctrl+C asks the session to stop; it still drains before finishing.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	waitErr := make(chan error, 1)
	go func() { waitErr <- mgr.Controller.Wait(ctx) }()

	select {
	case <-sigChan:
		fmt.Fprintln(cmd.OutOrStdout(), "Stopping...")
		mgr.Controller.Stop(ctx)
		err = <-waitErr
	case err = <-waitErr:
	}

	st := mgr.Controller.Status()
	if stopErr := mgr.Stop(ctx); stopErr != nil && err == nil {
		err = stopErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Record:  %s\n", st.RecordID)
	fmt.Fprintf(out, "Points:  %d\n", st.Total)
	fmt.Fprintf(out, "Elapsed: %s\n", st.FinishedAt.Sub(st.StartedAt).Round(time.Millisecond))
	if dir, ok := mgr.RecordDir(id); ok {
		fmt.Fprintf(out, "Saved:   %s\n", dir)
	}
	if st.Aborted {
		return fmt.Errorf("measurement %s aborted by a device error", id)
	}
	return err
}

// applyFlags overrides the session section with every flag the user set.
func applyFlags(cmd *cobra.Command, s *config.SessionConfig) error {
	f := cmd.Flags()
	var err error
	if f.Changed("duration") {
		if s.Duration, err = f.GetDuration("duration"); err != nil {
			return err
		}
	}
	if f.Changed("rate") {
		if s.SampleRate, err = f.GetInt("rate"); err != nil {
			return err
		}
	}
	if f.Changed("voltage") {
		if s.Voltage, err = f.GetString("voltage"); err != nil {
			return err
		}
	}
	if f.Changed("elements") {
		if s.ElementsPerRequest, err = f.GetInt("elements"); err != nil {
			return err
		}
	}
	if f.Changed("channels") {
		if s.Channels, err = f.GetIntSlice("channels"); err != nil {
			return err
		}
	}
	if f.Changed("raw") {
		raw, err := f.GetBool("raw")
		if err != nil {
			return err
		}
		s.Averaging = !raw
	}
	return s.Model().Validate()
}
