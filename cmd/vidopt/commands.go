package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/vidopt/internal/check"
	"github.com/backmassage/vidopt/internal/display"
	"github.com/backmassage/vidopt/internal/pipeline"
	"github.com/backmassage/vidopt/internal/server"
)

// errJobsFailed makes "run" exit non-zero after the summary was printed.
var errJobsFailed = errors.New("one or more jobs failed")

// NewServeCommand creates the serve command
func NewServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			display.PrintBanner(os.Stdout, version)
			e, err := a.newEngine(ctx)
			if err != nil {
				return err
			}
			srv := server.New(&a.cfg, a.log, e.sink, e.dispatcher, e.prober)
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.log.Info("Shutting down, waiting for running jobs")
			e.dispatcher.Wait()
			return nil
		},
	}
}

// NewRunCommand creates the run command
func NewRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file|dir>",
		Short: "Process a file or directory and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := a.newEngine(ctx)
			if err != nil {
				return err
			}
			if _, err := e.dispatcher.Start(args[0]); err != nil {
				return err
			}
			e.dispatcher.Wait()

			st := e.dispatcher.Stats()
			logSummary(a, st)
			if st.Failed > 0 {
				return errJobsFailed
			}
			return nil
		},
	}
}

// NewCheckCommand creates the check command
func NewCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report ffmpeg, ffprobe and encoder availability",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			check.RunCheck(&a.cfg, a.log)
			return check.CheckDeps(&a.cfg)
		},
	}
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vidopt %s (%s)\n", version, commit)
		},
	}
}

func logSummary(a *app, st pipeline.RunStats) {
	log := a.log
	log.Info("==============================")
	log.Info("Done: %d encoded, %d skipped, %d failed", st.Encoded, st.Skipped, st.Failed)
	log.Info("  Total files: %d", st.Total)

	saved := display.FormatSavings(st.TotalInputBytes, st.TotalOutputBytes)
	if st.SpaceSaved() >= 0 {
		log.Success("  Total space saved: %s (input %s -> output %s)",
			saved,
			display.FormatBytes(st.TotalInputBytes),
			display.FormatBytes(st.TotalOutputBytes))
	} else {
		log.Warn("  Total space saved: %s (overall output is larger)", saved)
	}
}
