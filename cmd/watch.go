package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	saterrors "github.com/adalundhe/saturn/core/errors"
)

var errWatchStdin = errors.New("watch needs axiom files, not stdin")

// watchDebounce is the quiet period after an axiom file event before the
// files are read again.
const watchDebounce = 100 * time.Millisecond

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch axioms.json...",
		Short: "Reclassify whenever the axiom files change",
		Long: `Classify the axiom files and print the taxonomy again every time one of
them changes, until interrupted. Changes to the configuration files are
applied to the running reasoner.

Examples:
  saturn watch ontology.json
  saturn watch --json base.json extra.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags, args)
		},
	}
}

func runWatch(cmd *cobra.Command, flags *globalFlags, files []string) (err error) {
	if flags.storePath != "" {
		return errFilesWithStore
	}
	watched := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{})
	for _, path := range files {
		if path == "-" {
			return errWatchStdin
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		watched[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	s, err := openSession(cmd, flags, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	ctx := cmd.Context()
	if err := s.config.Watch(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	if err := reclassify(ctx, s, files); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, ok := watched[filepath.Clean(ev.Name)]; !ok {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := reclassify(ctx, s, files); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("axiom watcher error", "error", err)
		}
	}
}

// reclassify reloads the axiom files and prints the taxonomy. Unreadable
// files and inconsistent ontologies are reported and the watch goes on;
// only fatal reasoner failures end it.
func reclassify(ctx context.Context, s *session, files []string) error {
	axioms, err := readAxiomFiles(os.Stdin, files)
	if err != nil {
		s.logger.Warn("axiom files not reloaded", "error", err)
		return nil
	}
	if err := s.Load(ctx, axioms...); err != nil {
		if saterrors.IsFatal(err) {
			return err
		}
		s.logger.Warn("axioms not loaded", "error", err)
		return nil
	}

	tax, err := s.Taxonomy(ctx)
	switch {
	case errors.Is(err, saterrors.ErrInconsistentOntology):
		fmt.Fprintf(s.out, "%sinconsistent%s (%d axioms)\n", colorRed, colorReset, len(axioms))
		return nil
	case errors.Is(err, saterrors.ErrInterrupted) && ctx.Err() != nil:
		return nil
	case err != nil:
		return err
	}
	return printTaxonomy(s.out, s.flags.jsonOutput, tax)
}
