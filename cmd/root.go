// Package cmd provides the saturn command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/adalundhe/saturn/core/config"
	"github.com/adalundhe/saturn/core/metrics"
	"github.com/adalundhe/saturn/core/reasoner"
)

var errFilesWithStore = errors.New("axiom files cannot be combined with --store; use 'saturn add' to journal them")

// globalFlags are shared by every command.
type globalFlags struct {
	projectRoot string
	storePath   string
	workers     int
	jsonOutput  bool
	verbose     bool
	showMetrics bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "saturn",
		Short: "Saturn - an incremental OWL EL reasoner",
		Long: `Saturn classifies OWL EL ontologies by consequence-based saturation.

Axioms are read from JSON files, one array of axioms per file, or kept in a
journal database with --store. Classification results are recomputed
incrementally when the journal changes.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.projectRoot, "project", ".", "Directory holding .saturn/config.yaml")
	root.PersistentFlags().StringVarP(&flags.storePath, "store", "s", "", "Axiom journal database")
	root.PersistentFlags().IntVarP(&flags.workers, "workers", "w", 0, "Saturation workers (default from config)")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "Output as JSON")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log reasoner stages")
	root.PersistentFlags().BoolVar(&flags.showMetrics, "metrics", false, "Print collected metrics on exit")

	root.AddCommand(
		newCheckCmd(flags),
		newClassifyCmd(flags),
		newRealizeCmd(flags),
		newSubsumersCmd(flags),
		newAddCmd(flags),
		newRemoveCmd(flags),
		newPersistCmd(flags),
		newCompactCmd(flags),
		newWatchCmd(flags),
	)
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// =============================================================================
// Session
// =============================================================================

// session is a reasoner configured from files, environment and flags.
type session struct {
	*reasoner.Reasoner
	flags    *globalFlags
	config   *config.Manager
	registry *prometheus.Registry
	logger   *slog.Logger
	out      io.Writer
}

// openSession creates the reasoner. Without persistent, any configured
// store is ignored and the axioms live in memory only.
func openSession(cmd *cobra.Command, flags *globalFlags, persistent bool) (*session, error) {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	manager := config.NewManager(config.ResolveDirs(), flags.projectRoot, logger)
	if err := manager.Load(); err != nil {
		return nil, err
	}
	cfg := manager.Get()

	opts := reasoner.OptionsFromConfig(cfg)
	opts.Logger = logger
	if flags.workers > 0 {
		opts.Workers = flags.workers
	}
	if flags.storePath != "" {
		opts.StorePath = flags.storePath
	}
	if !persistent {
		opts.StorePath = ""
	}

	s := &session{flags: flags, config: manager, logger: logger, out: cmd.OutOrStdout()}
	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		opts.Metrics = metrics.New(s.registry, cfg.Metrics.Namespace)
	}

	r, err := reasoner.New(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	s.Reasoner = r
	manager.OnChange(s.applyConfig)
	return s, nil
}

// applyConfig hands a reloaded configuration to the reasoner. The workers
// flag keeps precedence over the files.
func (s *session) applyConfig(cfg *config.Config) {
	next := *cfg
	if s.flags.workers > 0 {
		next.Reasoner.Workers = s.flags.workers
	}
	if err := s.ApplyConfig(&next); err != nil {
		s.logger.Warn("reloaded configuration not applied", "error", err)
	}
}

// Close stops watching the configuration, prints the metrics when
// requested and closes the reasoner.
func (s *session) Close() error {
	s.config.Close()
	if s.flags.showMetrics && s.registry != nil {
		if err := writeMetrics(s.out, s.registry); err != nil {
			s.Reasoner.Close()
			return err
		}
	}
	return s.Reasoner.Close()
}

// withSession opens a session, loads the axiom files and runs fn. Axiom
// files are reasoned over in memory; without files the journal is used.
func withSession(cmd *cobra.Command, flags *globalFlags, files []string, fn func(*session) error) (err error) {
	if len(files) > 0 && flags.storePath != "" {
		return errFilesWithStore
	}
	s, err := openSession(cmd, flags, len(files) == 0)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	if len(files) > 0 {
		axioms, err := readAxiomFiles(cmd.InOrStdin(), files)
		if err != nil {
			return err
		}
		if err := s.AddAxioms(cmd.Context(), axioms...); err != nil {
			return fmt.Errorf("load axioms: %w", err)
		}
	}
	return fn(s)
}
