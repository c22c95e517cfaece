package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/saturn/core/ontology"
)

const sampleAxioms = `[
  {"kind": "SubClassOf", "classes": [{"kind": "class", "iri": "A"}, {"kind": "class", "iri": "B"}]},
  {"kind": "SubClassOf", "classes": [{"kind": "class", "iri": "C"}, {"kind": "class", "iri": "B"}]},
  {"kind": "ClassAssertion", "classes": [{"kind": "class", "iri": "A"}], "individuals": ["ind"]}
]`

// isolate keeps user and environment configuration out of a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	for _, name := range []string{"SATURN_WORKERS", "SATURN_INCREMENTAL", "SATURN_SCAN_RATIO", "SATURN_STORE_PATH", "SATURN_TRACE"} {
		t.Setenv(name, "")
	}
	return home
}

func writeAxioms(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_Definition(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "saturn", root.Use)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"check", "classify", "realize", "subsumers", "add", "remove", "persist", "compact", "watch"}, names)

	for _, flag := range []string{"project", "store", "workers", "json", "verbose", "metrics"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestCheck(t *testing.T) {
	dir := isolate(t)
	consistent := writeAxioms(t, dir, "ok.json", sampleAxioms)
	inconsistent := writeAxioms(t, dir, "bad.json", `[
	  {"kind": "SubClassOf", "classes": [{"kind": "class", "iri": "A"}, {"kind": "class", "iri": "owl:Nothing"}]},
	  {"kind": "ClassAssertion", "classes": [{"kind": "class", "iri": "A"}], "individuals": ["ind"]}
	]`)

	out, err := run(t, "", "check", "--json", "--project", dir, consistent)
	require.NoError(t, err)
	var got checkOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Consistent)
	assert.Equal(t, 3, got.Axioms)

	out, err = run(t, "", "check", "--project", dir, inconsistent)
	require.NoError(t, err)
	assert.Contains(t, out, "inconsistent")
}

func TestClassify_JSON(t *testing.T) {
	dir := isolate(t)
	path := writeAxioms(t, dir, "ontology.json", sampleAxioms)

	out, err := run(t, "", "classify", "--json", "--project", dir, path)
	require.NoError(t, err)

	var nodes []nodeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	parents := make(map[string][]string)
	for _, n := range nodes {
		parents[strings.Join(n.Classes, "=")] = n.Parents
	}
	assert.Equal(t, []string{"B"}, parents["A"])
	assert.Equal(t, []string{"B"}, parents["C"])
	assert.Equal(t, []string{ontology.ThingIRI}, parents["B"])
	assert.Empty(t, parents[ontology.ThingIRI])
}

func TestClassify_Inconsistent(t *testing.T) {
	dir := isolate(t)
	path := writeAxioms(t, dir, "bad.json", `[
	  {"kind": "DisjointClasses", "classes": [{"kind": "class", "iri": "A"}, {"kind": "class", "iri": "B"}]},
	  {"kind": "ClassAssertion", "classes": [{"kind": "class", "iri": "A"}], "individuals": ["ind"]},
	  {"kind": "ClassAssertion", "classes": [{"kind": "class", "iri": "B"}], "individuals": ["ind"]}
	]`)

	_, err := run(t, "", "classify", "--project", dir, path)
	assert.ErrorContains(t, err, "inconsistent")
}

func TestRealize_Stdin(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, sampleAxioms, "realize", "--json", "--all", "--project", dir, "-")
	require.NoError(t, err)

	var got []typesOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "ind", got[0].Individual)
	assert.ElementsMatch(t, []string{"A", "B", ontology.ThingIRI}, got[0].Types)
}

func TestSubsumers(t *testing.T) {
	dir := isolate(t)
	path := writeAxioms(t, dir, "ontology.json", sampleAxioms)

	out, err := run(t, "", "subsumers", "--project", dir, "A", path)
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n"+ontology.ThingIRI+"\n", out)

	out, err = run(t, "", "subsumers", "--direct", "--project", dir, "A", path)
	require.NoError(t, err)
	assert.Equal(t, "B\n", out)
}

func TestJournalCommands(t *testing.T) {
	dir := isolate(t)
	store := filepath.Join(dir, "saturn.db")
	all := writeAxioms(t, dir, "all.json", sampleAxioms)
	removal := writeAxioms(t, dir, "removal.json", `[
	  {"kind": "SubClassOf", "classes": [{"kind": "class", "iri": "A"}, {"kind": "class", "iri": "B"}]}
	]`)

	_, err := run(t, "", "add", "--store", store, "--project", dir, all)
	require.NoError(t, err)

	out, err := run(t, "", "subsumers", "--store", store, "--project", dir, "A")
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n"+ontology.ThingIRI+"\n", out)

	out, err = run(t, "", "remove", "--json", "--store", store, "--project", dir, removal)
	require.NoError(t, err)
	var change journalOutput
	require.NoError(t, json.Unmarshal([]byte(out), &change))
	assert.Equal(t, 1, change.Removed)
	assert.Equal(t, 2, change.Axioms)

	out, err = run(t, "", "subsumers", "--store", store, "--project", dir, "A")
	require.NoError(t, err)
	assert.Equal(t, "A\n"+ontology.ThingIRI+"\n", out)

	_, err = run(t, "", "remove", "--store", store, "--project", dir, removal)
	assert.ErrorContains(t, err, "axiom not found")

	out, err = run(t, "", "persist", "--json", "--store", store, "--project", dir)
	require.NoError(t, err)
	var snap persistOutput
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.NotEmpty(t, snap.Snapshot)
	assert.Equal(t, int64(4), snap.JournalSeq)
	assert.False(t, snap.Inconsistent)

	_, err = run(t, "", "compact", "--store", store, "--project", dir)
	require.NoError(t, err)
}

func TestStoreFlagErrors(t *testing.T) {
	dir := isolate(t)
	path := writeAxioms(t, dir, "ontology.json", sampleAxioms)

	_, err := run(t, "", "add", "--project", dir, path)
	assert.ErrorIs(t, err, errStoreRequired)

	_, err = run(t, "", "classify", "--store", filepath.Join(dir, "x.db"), "--project", dir, path)
	assert.ErrorIs(t, err, errFilesWithStore)
}

func TestReadAxiomFiles_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "SubClassOf(A B)"},
		{name: "unknown kind", content: `[{"kind": "SubPropertyChainOf"}]`},
		{name: "wrong arity", content: `[{"kind": "SubClassOf", "classes": [{"kind": "class", "iri": "A"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAxioms(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".json", tt.content)
			_, err := readAxiomFiles(strings.NewReader(""), []string{path})
			assert.Error(t, err)
		})
	}

	_, err := readAxiomFiles(strings.NewReader(""), []string{filepath.Join(dir, "missing.json")})
	assert.Error(t, err)
}

func TestWriteMetrics(t *testing.T) {
	dir := isolate(t)
	path := writeAxioms(t, dir, "ontology.json", sampleAxioms)

	out, err := run(t, "", "subsumers", "--metrics", "--project", dir, "A", path)
	require.NoError(t, err)
	assert.Contains(t, out, "saturn_stage_runs_total")
}

// syncBuffer is written by a running command while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_ReclassifiesOnChange(t *testing.T) {
	dir := isolate(t)
	path := writeAxioms(t, dir, "ontology.json", sampleAxioms)

	root := newRootCmd()
	out := &syncBuffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"watch", "--json", "--project", dir, path})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	assert.Eventually(t, func() bool { return strings.Contains(out.String(), `"C"`) }, 5*time.Second, 20*time.Millisecond)
	assert.NotContains(t, out.String(), `"D"`)

	writeAxioms(t, dir, "ontology.json", strings.Replace(sampleAxioms, `"iri": "C"`, `"iri": "D"`, 1))
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), `"D"`) }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_RejectsStdin(t *testing.T) {
	dir := isolate(t)
	_, err := run(t, sampleAxioms, "watch", "--project", dir, "-")
	assert.ErrorIs(t, err, errWatchStdin)
}

func TestSession_AppliesReloadedConfig(t *testing.T) {
	dir := isolate(t)
	configFile := filepath.Join(dir, ".saturn", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(configFile), 0755))

	tests := []struct {
		name        string
		flagWorkers int
		want        int
	}{
		{name: "from file", want: 5},
		{name: "flag wins", flagWorkers: 7, want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(configFile, []byte("reasoner:\n  workers: 2\n  trace_patterns: [\"A*\"]\n"), 0644))
			cmd := newRootCmd()
			cmd.SetContext(context.Background())
			cmd.SetErr(io.Discard)
			flags := &globalFlags{projectRoot: dir, workers: tt.flagWorkers}

			s, err := openSession(cmd, flags, false)
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, os.WriteFile(configFile, []byte("reasoner:\n  workers: 5\n  scan_ratio: 9\n"), 0644))
			require.NoError(t, s.config.Reload())

			opts := s.Options()
			assert.Equal(t, tt.want, opts.Workers)
			assert.Equal(t, 9, opts.ScanRatio)
			assert.Empty(t, opts.TracePatterns)
		})
	}
}
