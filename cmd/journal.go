package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errStoreRequired = errors.New("--store is required")

func requireStore(flags *globalFlags) error {
	if flags.storePath == "" {
		return errStoreRequired
	}
	return nil
}

type journalOutput struct {
	Added   int `json:"added,omitempty"`
	Removed int `json:"removed,omitempty"`
	Axioms  int `json:"axioms"`
}

func newAddCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add axioms.json...",
		Short: "Journal axioms into the store",
		Long: `Add the axioms of the given files to the journal of --store.
Use "-" to read standard input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return journalChange(cmd, flags, args, true)
		},
	}
}

func newRemoveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove axioms.json...",
		Short: "Remove journaled axioms from the store",
		Long: `Remove one occurrence of each axiom of the given files from the journal
of --store. Nothing is removed if any axiom is not loaded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return journalChange(cmd, flags, args, false)
		},
	}
}

func journalChange(cmd *cobra.Command, flags *globalFlags, files []string, add bool) (err error) {
	if err := requireStore(flags); err != nil {
		return err
	}
	axioms, err := readAxiomFiles(cmd.InOrStdin(), files)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, flags, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	out := journalOutput{}
	if add {
		err = s.AddAxioms(cmd.Context(), axioms...)
		out.Added = len(axioms)
	} else {
		err = s.RemoveAxioms(cmd.Context(), axioms...)
		out.Removed = len(axioms)
	}
	if err != nil {
		return err
	}
	out.Axioms = len(s.Axioms())

	if flags.jsonOutput {
		return writeJSON(s.out, out)
	}
	fmt.Fprintf(s.out, "%s+%d -%d%s, %d axioms loaded\n", colorGray, out.Added, out.Removed, colorReset, out.Axioms)
	return nil
}

type persistOutput struct {
	Snapshot     string `json:"snapshot"`
	JournalSeq   int64  `json:"journal_seq"`
	Nodes        int    `json:"nodes"`
	Inconsistent bool   `json:"inconsistent"`
}

func newPersistCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "persist",
		Short: "Store a snapshot of the taxonomy",
		Long:  `Classify the journaled axioms and store the taxonomy with the types of every individual.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(flags); err != nil {
				return err
			}
			return withSession(cmd, flags, nil, func(s *session) error {
				if _, err := s.Persist(cmd.Context()); err != nil {
					return err
				}
				snap, err := s.LatestSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				out := persistOutput{
					Snapshot:     snap.ID,
					JournalSeq:   snap.JournalSeq,
					Nodes:        len(snap.Nodes),
					Inconsistent: snap.Inconsistent,
				}
				if flags.jsonOutput {
					return writeJSON(s.out, out)
				}
				fmt.Fprintf(s.out, "snapshot %s%s%s at journal entry %d, %d nodes\n",
					colorCyan, out.Snapshot, colorReset, out.JournalSeq, out.Nodes)
				return nil
			})
		},
	}
}

func newCompactCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Rewrite the journal as a single change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(flags); err != nil {
				return err
			}
			return withSession(cmd, flags, nil, func(s *session) error {
				return s.CompactJournal(cmd.Context())
			})
		},
	}
}
