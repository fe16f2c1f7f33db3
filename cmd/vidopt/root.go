package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backmassage/vidopt/internal/check"
	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/ffmpeg"
	"github.com/backmassage/vidopt/internal/logging"
	"github.com/backmassage/vidopt/internal/naming"
	"github.com/backmassage/vidopt/internal/pipeline"
	"github.com/backmassage/vidopt/internal/probe"
	"github.com/backmassage/vidopt/internal/status"
)

// app carries the state every subcommand shares once the persistent
// pre-run has loaded the configuration.
type app struct {
	cfg   config.Config
	flags *config.Flags
	log   *logging.Logger
}

// engine is the wired pipeline used by serve and run.
type engine struct {
	sink       *status.Sink
	prober     *probe.Prober
	dispatcher *pipeline.Dispatcher
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}

	rootCmd := &cobra.Command{
		Use:           "vidopt",
		Short:         "Repair, shrink and optimize video files with ffmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				a.log.Close()
			}
		},
	}
	a.flags = config.BindFlags(rootCmd.PersistentFlags(), &a.cfg)

	rootCmd.AddCommand(
		NewServeCommand(a),
		NewRunCommand(a),
		NewCheckCommand(a),
		NewVersionCommand(),
	)
	return rootCmd
}

// setup layers config sources in order: defaults, YAML file, changed flags.
func (a *app) setup(cmd *cobra.Command) error {
	if a.flags.ConfigFile != "" {
		if err := config.Load(a.flags.ConfigFile, &a.cfg); err != nil {
			return err
		}
	}
	if err := config.ApplyFlags(cmd.Flags(), a.flags, &a.cfg); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.NewLogger(&a.cfg)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	a.log = log
	return nil
}

// newEngine resolves the encoder, verifies the toolchain, and wires the
// pipeline. ctx is cancelled only at shutdown.
func (a *app) newEngine(ctx context.Context) (*engine, error) {
	enc, err := check.ResolveEncoder(&a.cfg)
	if err != nil {
		return nil, err
	}
	if a.cfg.Encoder == config.EncoderAuto {
		a.log.Info("Encoder: %s (auto)", enc)
	} else {
		a.log.Info("Encoder: %s", enc)
	}
	a.cfg.Encoder = enc

	if err := check.CheckDeps(&a.cfg); err != nil {
		return nil, err
	}

	e := &engine{
		sink:   status.NewSink(),
		prober: probe.New(a.cfg.FFprobePath),
	}
	runner := ffmpeg.NewRunner(a.log, a.cfg.Verbose)
	m := pipeline.NewMachine(&a.cfg, a.log, e.sink, e.prober, runner, naming.NewCollisionResolver())
	e.dispatcher = pipeline.NewDispatcher(ctx, &a.cfg, a.log, e.sink, m)
	return e, nil
}
