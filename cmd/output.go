package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/adalundhe/saturn/core/ontology"
)

// ANSI color codes for terminal output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeMetrics prints the gathered metrics in the Prometheus text format.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, f := range families {
		if err := encoder.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

// readAxiomFiles decodes a JSON array of axioms from each file, "-" being
// standard input. Every axiom is validated.
func readAxiomFiles(stdin io.Reader, files []string) ([]ontology.Axiom, error) {
	var all []ontology.Axiom
	for _, path := range files {
		axioms, err := readAxiomFile(stdin, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, axioms...)
	}
	return all, nil
}

func readAxiomFile(stdin io.Reader, path string) ([]ontology.Axiom, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var axioms []ontology.Axiom
	if err := json.NewDecoder(r).Decode(&axioms); err != nil {
		return nil, fmt.Errorf("decode axioms: %w", err)
	}
	for i, a := range axioms {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("axiom %d: %w", i, err)
		}
	}
	return axioms, nil
}
