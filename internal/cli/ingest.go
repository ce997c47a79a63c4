package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/maude/internal/config"
	"github.com/roach88/maude/internal/ingest"
	"github.com/roach88/maude/internal/metrics"
	"github.com/roach88/maude/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database    string
	Delimiter   string
	Encoding    string
	MetricsFile string

	// Clock and RunIDs override the pipeline defaults (for testing).
	Clock  ingest.Clock
	RunIDs ingest.RunIDGenerator
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest [data-dir]",
		Short: "Ingest MAUDE source files into the archive",
		Long: `Ingest every .zip, .csv and .txt file in a directory into the archive.

Files already ingested (same bytes, any name) are skipped. Rows already in
the archive are not inserted again. A file that fails is rolled back and
reported; the run continues with the next file.

Examples:
  maude ingest ./data
  maude ingest --db ./maude.db --encoding utf-8 ./extracts
  maude ingest --metrics-file /var/lib/node_exporter/maude.prom`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if err := runIngest(opts, args, cmd); err != nil {
				return f.Fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", "", `field delimiter: one character, "tab" or "auto"`)
	cmd.Flags().StringVar(&opts.Encoding, "encoding", "", "source encoding: latin1, windows-1252 or utf-8")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus textfile metrics here after the run")

	return cmd
}

func runIngest(opts *IngestOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Delimiter != "" {
		cfg.Reader.Delimiter = opts.Delimiter
	}
	if opts.Encoding != "" {
		cfg.Reader.Encoding = opts.Encoding
	}
	dir := cfg.DataDir
	if len(args) == 1 {
		dir = args[0]
	}

	logger := opts.logger(cmd)

	st, err := openStore(cfg.Database, true)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	ctx, stop := commandContext(cmd)
	defer stop()

	m := metrics.New()
	summary, runErr := ingestDir(ctx, st, cfg, dir, logger, m, opts.Clock, opts.RunIDs)

	if opts.MetricsFile != "" {
		if err := m.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", opts.MetricsFile, "error", err)
		}
	}

	if err := opts.formatter(cmd).Success(newIngestReport(summary)); err != nil {
		return err
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, ErrCodeIngest, "ingest aborted", runErr)
	}
	if summary.Errored > 0 {
		return NewExitError(ExitFailure, ErrCodeIngest, fmt.Sprintf("%d of %d files errored", summary.Errored, len(summary.Files)))
	}
	return nil
}

// ingestDir runs one pipeline over dir. Shared by ingest and fetch --ingest.
func ingestDir(
	ctx context.Context,
	st *store.Store,
	cfg *config.Config,
	dir string,
	logger *slog.Logger,
	rec ingest.Recorder,
	clock ingest.Clock,
	runIDs ingest.RunIDGenerator,
) (ingest.Summary, error) {
	popts := []ingest.PipelineOption{
		ingest.WithClassifier(cfg.Classifier()),
		ingest.WithReaderOptions(cfg.Reader),
		ingest.WithLogger(logger),
		ingest.WithRecorder(rec),
	}
	if clock != nil {
		popts = append(popts, ingest.WithClock(clock))
	}
	if runIDs != nil {
		popts = append(popts, ingest.WithRunIDs(runIDs))
	}
	return ingest.NewPipeline(st, popts...).Ingest(ctx, dir)
}

// ingestReport is the printed form of an ingest.Summary.
type ingestReport struct {
	ingest.Summary
	Errors map[string]string `json:"errors,omitempty"`
}

func newIngestReport(s ingest.Summary) ingestReport {
	r := ingestReport{Summary: s}
	for _, f := range s.Files {
		if f.Err == nil {
			continue
		}
		if r.Errors == nil {
			r.Errors = map[string]string{}
		}
		r.Errors[f.Name] = f.Err.Error()
	}
	return r
}

// RenderText prints one line per file, then the run totals and table sizes.
func (r ingestReport) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range r.Files {
		detail := ""
		switch f.Status {
		case ingest.StatusProcessed:
			detail = fmt.Sprintf("%d rows inserted, %d dropped", f.Rows, f.Dropped)
		case ingest.StatusSkipped:
			detail = f.Reason
		case ingest.StatusErrored:
			detail = r.Errors[f.Name]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Status, f.Kind, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "run %s: %d processed, %d skipped, %d errored; %d rows inserted, %d dropped\n",
		r.RunID, r.Processed, r.Skipped, r.Errored, r.RowsInserted, r.RowsDropped)

	return statsReport{Stats: r.Stats}.RenderText(w)
}
