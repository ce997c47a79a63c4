package harness

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/roach88/maude/internal/engine"
	"github.com/roach88/maude/internal/ingest"
	"github.com/roach88/maude/internal/queryir"
	"github.com/roach88/maude/internal/store"
	"github.com/roach88/maude/internal/testutil"
)

// Harness runs one scenario against one database.
type Harness struct {
	store    *store.Store
	pipeline *ingest.Pipeline
	engine   *engine.Engine
	dataDir  string
	files    map[string][]byte
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh database in a temporary directory.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Build every file fixture in memory
// 2. Open a fresh database
// 3. Execute steps in order, checking their expectations
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	files, err := buildFiles(scenario.Files)
	if err != nil {
		return nil, err
	}

	root, err := os.MkdirTemp("", "maude-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(root)

	dataDir := filepath.Join(root, "data")
	if err := os.Mkdir(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	st, err := store.Open(filepath.Join(root, "maude.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	logger := testutil.DiscardLogger()
	opts := ingest.DefaultOptions()
	if scenario.Reader != nil {
		opts = *scenario.Reader
	}

	h := &Harness{
		store: st,
		pipeline: ingest.NewPipeline(st,
			ingest.WithReaderOptions(opts),
			ingest.WithLogger(logger),
			ingest.WithClock(testutil.NewDeterministicClock()),
			ingest.WithRunIDs(testutil.NewSequenceRunIDs(scenario.Name)),
		),
		engine:  engine.New(st, engine.WithLogger(logger)),
		dataDir: dataDir,
		files:   files,
		logger:  logger,
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		event, err := h.executeStep(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.Trace = append(result.Trace, event)
		for _, msg := range checkExpect(event, step.Expect) {
			result.AddError(fmt.Sprintf("step %d: %s", i+1, msg))
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, seq int, step Step) (TraceEvent, error) {
	if step.Ingest != nil {
		return h.executeIngest(ctx, seq, step.Ingest)
	}
	return h.executeQuery(ctx, seq, step.Query)
}

// executeIngest writes the step's files into the data directory and runs
// the pipeline over all of it.
func (h *Harness) executeIngest(ctx context.Context, seq int, step *IngestStep) (TraceEvent, error) {
	for _, name := range step.Files {
		if err := os.WriteFile(filepath.Join(h.dataDir, name), h.files[name], 0o644); err != nil {
			return TraceEvent{}, fmt.Errorf("write %s: %w", name, err)
		}
	}

	summary, err := h.pipeline.Ingest(ctx, h.dataDir)
	if err != nil {
		return TraceEvent{}, err
	}

	event := TraceEvent{
		Seq:          seq,
		Type:         StepIngest,
		Files:        make([]TraceFile, 0, len(summary.Files)),
		Processed:    summary.Processed,
		Skipped:      summary.Skipped,
		Errored:      summary.Errored,
		RowsInserted: summary.RowsInserted,
		RowsDropped:  summary.RowsDropped,
	}
	for _, f := range summary.Files {
		tf := TraceFile{
			Name:    f.Name,
			Status:  string(f.Status),
			Kind:    f.Kind.String(),
			Rows:    f.Rows,
			Dropped: f.Dropped,
			Reason:  f.Reason,
		}
		if f.Status == ingest.StatusErrored && f.Err != nil {
			tf.Error = f.Err.Error()
		}
		event.Files = append(event.Files, tf)
	}

	h.logger.Info("ingest step completed", "seq", seq, "processed", summary.Processed)
	return event, nil
}

// executeQuery runs one search. Validation errors are recorded in the
// trace; anything else fails the scenario.
func (h *Harness) executeQuery(ctx context.Context, seq int, step *QueryStep) (TraceEvent, error) {
	req := engine.Request{
		Table:   step.Table,
		Field:   step.Field,
		Include: splitGroups(step.Include),
		Exclude: splitGroups(step.Exclude),
		Limit:   step.Limit,
	}

	event := TraceEvent{
		Seq:  seq,
		Type: StepQuery,
		Query: &TraceQuery{
			Table:   req.Table,
			Field:   req.Field,
			Include: req.Include,
			Exclude: req.Exclude,
			Limit:   req.Limit,
		},
	}

	records, err := h.engine.Query(ctx, req)
	if err != nil {
		if !engine.IsValidationError(err) {
			return TraceEvent{}, err
		}
		event.Error = err.Error()
		return event, nil
	}

	// SQL and in-memory matching must agree on every returned record.
	if kept := engine.Filter(records, req.Field, req.Include, req.Exclude); len(kept) != len(records) {
		return TraceEvent{}, fmt.Errorf("query step %d: %d of %d records fail in-memory matching",
			seq, len(records)-len(kept), len(records))
	}

	event.Count = len(records)
	for _, rec := range records {
		event.Records = append(event.Records, TraceRecord{
			Table:  string(rec.Kind),
			Fields: rec.Fields,
		})
	}

	h.logger.Info("query step completed", "seq", seq, "records", len(records))
	return event, nil
}

func splitGroups(groups []string) [][]string {
	if len(groups) == 0 {
		return nil
	}
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, queryir.SplitTerms(g))
	}
	return out
}

// reportKey identifies a report across tables; StepExpect.Keys lists it.
const reportKey = "mdr_report_key"

// checkExpect compares a step's trace event against its expectations.
// A query error fails the step unless it was expected.
func checkExpect(event TraceEvent, expect *StepExpect) []string {
	if expect == nil {
		expect = &StepExpect{}
	}

	var errs []string
	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			errs = append(errs, fmt.Sprintf("expected %s %d, got %d", name, *want, got))
		}
	}

	checkInt("processed", expect.Processed, event.Processed)
	checkInt("skipped", expect.Skipped, event.Skipped)
	checkInt("errored", expect.Errored, event.Errored)
	checkInt("rows_inserted", expect.RowsInserted, event.RowsInserted)
	checkInt("rows_dropped", expect.RowsDropped, event.RowsDropped)
	checkInt("count", expect.Count, event.Count)

	if expect.Keys != nil {
		keys := make([]string, 0, len(event.Records))
		for _, rec := range event.Records {
			keys = append(keys, rec.Fields[reportKey])
		}
		if !slices.Equal(keys, expect.Keys) {
			errs = append(errs, fmt.Sprintf("expected keys %v, got %v", expect.Keys, keys))
		}
	}

	switch {
	case expect.Error != "" && !strings.Contains(event.Error, expect.Error):
		errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", expect.Error, event.Error))
	case expect.Error == "" && event.Error != "":
		errs = append(errs, fmt.Sprintf("unexpected error %q", event.Error))
	}

	return errs
}

// buildFiles renders every fixture to bytes.
func buildFiles(fixtures []FileFixture) (map[string][]byte, error) {
	files := make(map[string][]byte, len(fixtures))
	for _, f := range fixtures {
		var (
			data []byte
			err  error
		)
		switch {
		case f.CopyOf != "":
			data = files[f.CopyOf]
		case len(f.Members) > 0:
			data, err = zipMembers(f.Members, f.Encoding)
			if f.Truncated {
				data = data[:len(data)/2]
			}
		default:
			data, err = encodeText(f.Content, f.Encoding)
		}
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", f.Name, err)
		}
		files[f.Name] = data
	}
	return files, nil
}

func zipMembers(members []Member, encoding string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.Name)
		if err != nil {
			return nil, err
		}
		data, err := encodeText(m.Content, encoding)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeText(s, encoding string) ([]byte, error) {
	if encoding == ingest.EncodingUTF8 {
		return []byte(s), nil
	}
	return charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
}
