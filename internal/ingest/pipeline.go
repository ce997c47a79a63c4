package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/maude/internal/classify"
	"github.com/roach88/maude/internal/record"
	"github.com/roach88/maude/internal/store"
)

// Status is the outcome of one source file.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusErrored   Status = "errored"
)

// Skip reasons reported in FileResult.Reason.
const (
	ReasonAlreadyIngested = "already ingested"
	ReasonUnknownKind     = "unknown record kind"
)

// FileResult is what happened to one source file.
type FileResult struct {
	Name        string      `json:"name"`
	Fingerprint string      `json:"fingerprint,omitempty"`
	Kind        record.Kind `json:"kind,omitempty"`
	Status      Status      `json:"status"`
	Rows        int         `json:"rows_inserted"`
	Dropped     int         `json:"rows_dropped"`
	Reason      string      `json:"reason,omitempty"`
	Err         error       `json:"-"`
}

// Summary reports a whole run. It is returned even when the run aborts.
type Summary struct {
	RunID        string       `json:"run_id"`
	Processed    int          `json:"processed"`
	Skipped      int          `json:"skipped"`
	Errored      int          `json:"errored"`
	RowsInserted int          `json:"rows_inserted"`
	RowsDropped  int          `json:"rows_dropped"`
	Files        []FileResult `json:"files"`
	Stats        store.Stats  `json:"stats"`
}

func (s *Summary) add(res FileResult) {
	s.Files = append(s.Files, res)
	switch res.Status {
	case StatusProcessed:
		s.Processed++
		s.RowsInserted += res.Rows
		s.RowsDropped += res.Dropped
	case StatusSkipped:
		s.Skipped++
	case StatusErrored:
		s.Errored++
	}
}

// Recorder observes finished files. Implemented by metrics.Metrics.
type Recorder interface {
	ObserveFile(kind, status string, rowsInserted, rowsDropped int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFile(string, string, int, int) {}

// Pipeline ingests a directory of source files into the store.
//
// Files are processed strictly one at a time. Each file is its own error
// boundary: a parse failure, a corrupt archive, a failed write or a panic
// marks that file errored, rolls back its transaction, and moves on. Only
// an unusable store ends the run early.
//
// A Pipeline must not run concurrently with another Pipeline on the same
// store.
type Pipeline struct {
	store      *store.Store
	classifier classify.Classifier
	opts       Options
	exts       []string
	logger     *slog.Logger
	clock      Clock
	runIDs     RunIDGenerator
	recorder   Recorder
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithClassifier sets the record classifier. Default: classify.New().
func WithClassifier(c classify.Classifier) PipelineOption {
	return func(p *Pipeline) { p.classifier = c }
}

// WithReaderOptions sets decoding options. Default: DefaultOptions().
func WithReaderOptions(o Options) PipelineOption {
	return func(p *Pipeline) { p.opts = o }
}

// WithExtensions sets the file extensions Discover picks up.
func WithExtensions(exts []string) PipelineOption {
	return func(p *Pipeline) { p.exts = exts }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the ledger clock. Default: SystemClock.
func WithClock(c Clock) PipelineOption {
	return func(p *Pipeline) { p.clock = c }
}

// WithRunIDs sets the run ID generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) PipelineOption {
	return func(p *Pipeline) { p.runIDs = g }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

// NewPipeline creates a Pipeline writing to s.
func NewPipeline(s *store.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:      s,
		classifier: classify.New(),
		opts:       DefaultOptions(),
		logger:     slog.Default(),
		clock:      SystemClock{},
		runIDs:     UUIDv7Generator{},
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest discovers and ingests every source file in dir.
//
// The returned error is nil unless the directory cannot be listed, the
// context is cancelled between files, or the store becomes unusable; per-file
// failures are only reported in the Summary.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (Summary, error) {
	paths, err := Discover(dir, p.exts)
	if err != nil {
		return Summary{}, err
	}
	return p.IngestFiles(ctx, paths)
}

// IngestFiles ingests the given files in order.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string) (Summary, error) {
	summary := Summary{
		RunID: p.runIDs.Generate(),
		Files: []FileResult{},
	}

	p.logger.Info("ingestion started", "run_id", summary.RunID, "files", len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("ingest cancelled: %w", err)
		}

		res := p.processFile(ctx, summary.RunID, path)
		summary.add(res)
		p.recorder.ObserveFile(res.Kind.String(), string(res.Status), res.Rows, res.Dropped)
		p.logResult(res)

		if res.Status == StatusErrored {
			if err := p.store.Ping(ctx); err != nil {
				p.logger.Error("store unusable, aborting run", "run_id", summary.RunID, "error", err)
				return summary, fmt.Errorf("ingest aborted after %s: %w", res.Name, err)
			}
		}
	}

	stats, err := p.store.Stats(ctx)
	if err != nil {
		return summary, fmt.Errorf("ingest stats: %w", err)
	}
	summary.Stats = stats

	p.logger.Info("ingestion finished",
		"run_id", summary.RunID,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
		"rows_inserted", summary.RowsInserted,
		"rows_dropped", summary.RowsDropped,
	)
	for _, t := range stats.Tables {
		p.logger.Info("table", "table", string(t.Kind), "rows", t.Rows, "columns", t.Columns)
	}

	return summary, nil
}

// processFile runs one file inside its own error boundary.
func (p *Pipeline) processFile(ctx context.Context, runID, path string) (res FileResult) {
	res.Name = filepath.Base(path)

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusErrored
			res.Rows = 0
			res.Err = fmt.Errorf("panic while ingesting %s: %v", res.Name, r)
		}
	}()

	errored := func(err error) FileResult {
		res.Status = StatusErrored
		res.Err = err
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errored(&FileError{File: res.Name, Err: err})
	}
	res.Fingerprint = record.FileFingerprint(data)

	done, err := p.store.HasFile(ctx, res.Fingerprint)
	if err != nil {
		return errored(err)
	}
	if done {
		res.Status = StatusSkipped
		res.Reason = ReasonAlreadyIngested
		return res
	}

	kind := p.classifier.Classify(res.Name, nil)

	unknown := func() FileResult {
		res.Status = StatusSkipped
		res.Reason = ReasonUnknownKind
		res.Err = &classify.ClassificationError{File: res.Name}
		return res
	}

	tables, err := ReadSource(res.Name, data, p.opts)
	if err != nil {
		// Without a recognised name there is no header to classify by.
		if !kind.Valid() {
			p.logger.Debug("unreadable file with unrecognised name", "file", res.Name, "error", err)
			return unknown()
		}
		return errored(err)
	}

	if !kind.Valid() {
		kind = p.classifier.Classify(tables[0].Name, tables[0].Header)
	}
	if !kind.Valid() {
		return unknown()
	}
	res.Kind = kind

	for _, t := range tables {
		for _, pe := range t.Dropped {
			p.logger.Warn("dropped malformed record", "file", pe.File, "line", pe.Line, "error", pe.Err)
		}
		res.Dropped += len(t.Dropped)
	}

	inserted, err := p.write(ctx, runID, res, tables)
	if err != nil {
		return errored(err)
	}

	res.Status = StatusProcessed
	res.Rows = inserted
	return res
}

// write stores every table of one file and its ledger entry in a single
// transaction. Any error rolls the whole file back.
func (p *Pipeline) write(ctx context.Context, runID string, res FileResult, tables []Table) (int, error) {
	tx, err := p.store.BeginFile(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	for _, t := range tables {
		if err := tx.EnsureColumns(res.Kind, t.Header); err != nil {
			return 0, err
		}

		for _, values := range t.Rows {
			row := record.NewRow(res.Kind, t.Header, values)
			hash, err := record.RowFingerprint(row)
			if err != nil {
				return 0, fmt.Errorf("fingerprint %s: %w", t.Name, err)
			}
			ok, err := tx.InsertRow(row, hash)
			if err != nil {
				return 0, err
			}
			if ok {
				inserted++
			}
		}
	}

	_, err = tx.RecordFile(store.LedgerEntry{
		FileHash:     res.Fingerprint,
		FileName:     res.Name,
		Kind:         res.Kind,
		RowsInserted: inserted,
		RowsDropped:  res.Dropped,
		RunID:        runID,
		IngestedAt:   p.clock.Now(),
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (p *Pipeline) logResult(res FileResult) {
	switch res.Status {
	case StatusProcessed:
		p.logger.Info("file processed",
			"file", res.Name,
			"kind", res.Kind.String(),
			"rows_inserted", res.Rows,
			"rows_dropped", res.Dropped,
		)
	case StatusSkipped:
		level := slog.LevelInfo
		var ce *classify.ClassificationError
		if errors.As(res.Err, &ce) {
			level = slog.LevelWarn
		}
		p.logger.Log(context.Background(), level, "file skipped", "file", res.Name, "reason", res.Reason)
	case StatusErrored:
		p.logger.Error("file errored", "file", res.Name, "error", res.Err)
	}
}
