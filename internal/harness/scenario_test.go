package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maude/internal/ingest"
)

const minimalScenario = `
name: minimal
description: "One file, one query"
files:
  - name: foitext1996.txt
    content: |
      MDR_REPORT_KEY|FOI_TEXT
      1|Pump occluded
steps:
  - ingest:
      files: [foitext1996.txt]
  - query:
      field: foi_text
      include: ["pump"]
    expect:
      count: 1
assertions:
  - type: ledger_count
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	require.Len(t, scenario.Files, 1)
	assert.Equal(t, "MDR_REPORT_KEY|FOI_TEXT\n1|Pump occluded\n", scenario.Files[0].Content)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, []string{"foitext1996.txt"}, scenario.Steps[0].Ingest.Files)
	assert.Nil(t, scenario.Steps[0].Query)
	assert.Equal(t, "foi_text", scenario.Steps[1].Query.Field)
	require.NotNil(t, scenario.Steps[1].Expect.Count)
	assert.Equal(t, 1, *scenario.Steps[1].Expect.Count)
	assert.Nil(t, scenario.Steps[1].Expect.Processed)
	assert.Nil(t, scenario.Reader)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_EmptyIngestStep(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: rerun
description: "Re-ingest an empty directory"
steps:
  - ingest: {}
`))
	require.NoError(t, err)
	require.NotNil(t, scenario.Steps[0].Ingest)
	assert.Empty(t, scenario.Steps[0].Ingest.Files)
}

func TestParseScenario_ReaderOptions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: reader
description: "Custom reader"
reader:
  delimiter: auto
  encoding: utf-8
steps:
  - ingest: {}
`))
	require.NoError(t, err)
	require.NotNil(t, scenario.Reader)
	assert.Equal(t, ingest.Options{Delimiter: "auto", Encoding: "utf-8"}, *scenario.Reader)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{
			name: "missing name",
			body: "description: x\nsteps:\n  - ingest: {}\n",
			msg:  "name is required",
		},
		{
			name: "missing description",
			body: "name: x\nsteps:\n  - ingest: {}\n",
			msg:  "description is required",
		},
		{
			name: "no steps",
			body: "name: x\ndescription: x\n",
			msg:  "steps list is required",
		},
		{
			name: "unknown field",
			body: "name: x\ndescription: x\nstep:\n  - ingest: {}\n",
			msg:  "failed to parse YAML",
		},
		{
			name: "empty step",
			body: "name: x\ndescription: x\nsteps:\n  - expect: {count: 1}\n",
			msg:  "one of ingest or query is required",
		},
		{
			name: "ingest and query",
			body: "name: x\ndescription: x\nsteps:\n  - ingest: {}\n    query: {field: foi_text}\n",
			msg:  "mutually exclusive",
		},
		{
			name: "query without field",
			body: "name: x\ndescription: x\nsteps:\n  - query: {table: device}\n",
			msg:  "query field is required",
		},
		{
			name: "unknown file",
			body: "name: x\ndescription: x\nsteps:\n  - ingest: {files: [a.txt]}\n",
			msg:  `unknown file "a.txt"`,
		},
		{
			name: "duplicate file",
			body: "name: x\ndescription: x\nfiles:\n  - {name: a.txt, content: x}\n  - {name: a.txt, content: y}\nsteps:\n  - ingest: {}\n",
			msg:  `duplicate name "a.txt"`,
		},
		{
			name: "file without source",
			body: "name: x\ndescription: x\nfiles:\n  - {name: a.txt}\nsteps:\n  - ingest: {}\n",
			msg:  "exactly one of content, members or copy_of",
		},
		{
			name: "copy of later file",
			body: "name: x\ndescription: x\nfiles:\n  - {name: a.txt, copy_of: b.txt}\n  - {name: b.txt, content: y}\nsteps:\n  - ingest: {}\n",
			msg:  "is not an earlier file",
		},
		{
			name: "bad encoding",
			body: "name: x\ndescription: x\nfiles:\n  - {name: a.txt, content: x, encoding: ebcdic}\nsteps:\n  - ingest: {}\n",
			msg:  `unsupported encoding "ebcdic"`,
		},
		{
			name: "truncated text file",
			body: "name: x\ndescription: x\nfiles:\n  - {name: a.txt, content: x, truncated: true}\nsteps:\n  - ingest: {}\n",
			msg:  "truncated applies only to members",
		},
		{
			name: "unknown assertion",
			body: "name: x\ndescription: x\nsteps:\n  - ingest: {}\nassertions:\n  - type: final_state\n",
			msg:  `unknown assertion type "final_state"`,
		},
		{
			name: "bad table",
			body: "name: x\ndescription: x\nsteps:\n  - ingest: {}\nassertions:\n  - {type: table_rows, table: mdr, count: 1}\n",
			msg:  `unknown record kind "mdr"`,
		},
		{
			name: "trace_count without step",
			body: "name: x\ndescription: x\nsteps:\n  - ingest: {}\nassertions:\n  - {type: trace_count, count: 1}\n",
			msg:  "step must be",
		},
		{
			name: "negative count",
			body: "name: x\ndescription: x\nsteps:\n  - ingest: {}\nassertions:\n  - {type: ledger_count, count: -1}\n",
			msg:  "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
