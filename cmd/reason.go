package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/saturn/core/taxonomy"
)

// =============================================================================
// Check
// =============================================================================

type checkOutput struct {
	Consistent bool  `json:"consistent"`
	Axioms     int   `json:"axioms"`
	Inserted   int64 `json:"conclusions"`
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [axioms.json...]",
		Short: "Check ontology consistency",
		Long: `Check whether the ontology is consistent.

Examples:
  saturn check ontology.json          # Check the axioms of a file
  saturn check --store saturn.db      # Check the journaled axioms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, args, func(s *session) error {
				inconsistent, err := s.IsInconsistent(cmd.Context())
				if err != nil {
					return err
				}
				stats := s.Stats()
				out := checkOutput{
					Consistent: !inconsistent,
					Axioms:     len(s.Axioms()),
					Inserted:   stats.TotalInserted(),
				}
				if flags.jsonOutput {
					return writeJSON(s.out, out)
				}
				if out.Consistent {
					fmt.Fprintf(s.out, "%sconsistent%s (%d axioms)\n", colorGreen, colorReset, out.Axioms)
				} else {
					fmt.Fprintf(s.out, "%sinconsistent%s (%d axioms)\n", colorRed, colorReset, out.Axioms)
				}
				return nil
			})
		},
	}
}

// =============================================================================
// Classify
// =============================================================================

type nodeOutput struct {
	Classes []string `json:"classes"`
	Parents []string `json:"parents,omitempty"`
}

func newClassifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [axioms.json...]",
		Short: "Compute the class taxonomy",
		Long: `Compute the class taxonomy and print every node with its direct parents.
Equivalent classes share a node.

Examples:
  saturn classify ontology.json
  saturn classify --json --store saturn.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, args, func(s *session) error {
				tax, err := s.Taxonomy(cmd.Context())
				if err != nil {
					return err
				}
				return printTaxonomy(s.out, flags.jsonOutput, tax)
			})
		},
	}
}

func printTaxonomy(w io.Writer, asJSON bool, tax *taxonomy.Taxonomy) error {
	nodes := taxonomyOutput(tax)
	if asJSON {
		return writeJSON(w, nodes)
	}
	for _, n := range nodes {
		fmt.Fprintf(w, "%s%s%s", colorBold, strings.Join(n.Classes, " = "), colorReset)
		if len(n.Parents) > 0 {
			fmt.Fprintf(w, " %s⊑ %s%s", colorGray, strings.Join(n.Parents, ", "), colorReset)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func taxonomyOutput(tax *taxonomy.Taxonomy) []nodeOutput {
	out := make([]nodeOutput, 0, len(tax.Nodes()))
	for _, n := range tax.Nodes() {
		rec := nodeOutput{Classes: nodeNames(n)}
		for _, p := range n.Parents() {
			rec.Parents = append(rec.Parents, p.Canonical().IRI())
		}
		out = append(out, rec)
	}
	return out
}

func nodeNames(n *taxonomy.Node) []string {
	names := make([]string, 0, len(n.Members()))
	for _, m := range n.Members() {
		names = append(names, m.IRI())
	}
	return names
}

// =============================================================================
// Realize
// =============================================================================

type typesOutput struct {
	Individual string   `json:"individual"`
	Types      []string `json:"types"`
}

func newRealizeCmd(flags *globalFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "realize [axioms.json...]",
		Short: "Compute the types of every individual",
		Long: `Compute the most specific named types of every individual.

Use --all to print every type instead of the direct ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, args, func(s *session) error {
				it, err := s.InstanceTaxonomy(cmd.Context())
				if err != nil {
					return err
				}
				var out []typesOutput
				for _, ind := range it.Individuals() {
					types, _ := it.Types(ind, !all)
					rec := typesOutput{Individual: ind.IRI()}
					for _, n := range types {
						rec.Types = append(rec.Types, nodeNames(n)...)
					}
					out = append(out, rec)
				}
				if flags.jsonOutput {
					return writeJSON(s.out, out)
				}
				for _, rec := range out {
					fmt.Fprintf(s.out, "%s%s%s: %s\n", colorCyan, rec.Individual, colorReset, strings.Join(rec.Types, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Print every type, not only the direct ones")
	return cmd
}

// =============================================================================
// Subsumers
// =============================================================================

func newSubsumersCmd(flags *globalFlags) *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "subsumers CLASS [axioms.json...]",
		Short: "Print the named superclasses of a class",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, args[1:], func(s *session) error {
				supers, err := s.Subsumers(cmd.Context(), args[0], direct)
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					return writeJSON(s.out, supers)
				}
				for _, iri := range supers {
					fmt.Fprintln(s.out, iri)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&direct, "direct", "d", false, "Only the direct superclasses")
	return cmd
}
