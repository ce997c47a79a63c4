package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/maude/internal/ingest"
	"github.com/roach88/maude/internal/record"
)

// Scenario is an end-to-end archive test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Reader overrides the default decoding options.
	Reader *ingest.Options `yaml:"reader,omitempty"`

	// Files are the source files available to ingest steps.
	Files []FileFixture `yaml:"files"`

	// Steps run in order against one database.
	Steps []Step `yaml:"steps"`

	// Assertions check the final database state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// FileFixture describes one source file. Exactly one of Content, Members
// and CopyOf is set.
type FileFixture struct {
	Name string `yaml:"name"`

	// Content is the text of a plain .txt or .csv file.
	Content string `yaml:"content,omitempty"`

	// Members makes the file a ZIP archive.
	Members []Member `yaml:"members,omitempty"`

	// CopyOf names an earlier fixture whose bytes this file repeats.
	CopyOf string `yaml:"copy_of,omitempty"`

	// Encoding is latin1 (default) or utf-8.
	Encoding string `yaml:"encoding,omitempty"`

	// Truncated cuts a ZIP archive in half so it cannot be opened.
	Truncated bool `yaml:"truncated,omitempty"`
}

// Member is one entry of a ZIP fixture.
type Member struct {
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

// Step is either an ingest or a query.
type Step struct {
	Ingest *IngestStep `yaml:"ingest,omitempty"`
	Query  *QueryStep  `yaml:"query,omitempty"`
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// IngestStep adds files to the data directory and ingests it.
// An empty Files list re-ingests what is already there.
type IngestStep struct {
	Files []string `yaml:"files"`
}

// QueryStep runs one search. Each include and exclude entry is one group
// of comma-separated terms.
type QueryStep struct {
	Table   string   `yaml:"table,omitempty"`
	Field   string   `yaml:"field"`
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
	Limit   int      `yaml:"limit,omitempty"`
}

// StepExpect checks one step. Nil fields are not checked.
type StepExpect struct {
	Processed    *int `yaml:"processed,omitempty"`
	Skipped      *int `yaml:"skipped,omitempty"`
	Errored      *int `yaml:"errored,omitempty"`
	RowsInserted *int `yaml:"rows_inserted,omitempty"`
	RowsDropped  *int `yaml:"rows_dropped,omitempty"`

	Count *int `yaml:"count,omitempty"`

	// Keys are the expected mdr_report_key values of the results, in order.
	Keys []string `yaml:"keys,omitempty"`

	// Error is a substring of the expected query error.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Table is the record table (table_rows, table_columns).
	Table string `yaml:"table,omitempty"`

	// Count is the expected number (table_rows, ledger_count, trace_count).
	Count int `yaml:"count"`

	// Columns are the expected columns in order (table_columns).
	Columns []string `yaml:"columns,omitempty"`

	// Step is the step type to count (trace_count).
	Step string `yaml:"step,omitempty"`
}

// Assertion type constants.
const (
	AssertTableRows    = "table_rows"
	AssertTableColumns = "table_columns"
	AssertLedgerCount  = "ledger_count"
	AssertTraceCount   = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	known := make(map[string]bool, len(s.Files))
	for i, f := range s.Files {
		if err := validateFile(i, f, known); err != nil {
			return err
		}
		known[f.Name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, known); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateFile(i int, f FileFixture, known map[string]bool) error {
	if f.Name == "" {
		return fmt.Errorf("files[%d]: name is required", i)
	}
	if known[f.Name] {
		return fmt.Errorf("files[%d]: duplicate name %q", i, f.Name)
	}

	sources := 0
	if f.Content != "" {
		sources++
	}
	if len(f.Members) > 0 {
		sources++
	}
	if f.CopyOf != "" {
		sources++
		if !known[f.CopyOf] {
			return fmt.Errorf("files[%d]: copy_of %q is not an earlier file", i, f.CopyOf)
		}
	}
	if sources != 1 {
		return fmt.Errorf("files[%d]: exactly one of content, members or copy_of is required", i)
	}

	switch f.Encoding {
	case "", ingest.EncodingLatin1, ingest.EncodingUTF8:
	default:
		return fmt.Errorf("files[%d]: unsupported encoding %q", i, f.Encoding)
	}
	if f.Truncated && len(f.Members) == 0 {
		return fmt.Errorf("files[%d]: truncated applies only to members", i)
	}
	return nil
}

func validateStep(i int, step Step, known map[string]bool) error {
	switch {
	case step.Ingest != nil && step.Query != nil:
		return fmt.Errorf("steps[%d]: ingest and query are mutually exclusive", i)
	case step.Ingest != nil:
		for _, name := range step.Ingest.Files {
			if !known[name] {
				return fmt.Errorf("steps[%d]: unknown file %q", i, name)
			}
		}
	case step.Query != nil:
		if step.Query.Field == "" {
			return fmt.Errorf("steps[%d]: query field is required", i)
		}
	default:
		return fmt.Errorf("steps[%d]: one of ingest or query is required", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertTableRows, AssertTableColumns:
		if _, err := record.ParseKind(a.Table); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertLedgerCount:
	case AssertTraceCount:
		if a.Step != StepIngest && a.Step != StepQuery {
			return fmt.Errorf("assertions[%d]: step must be %q or %q for trace_count", index, StepIngest, StepQuery)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
