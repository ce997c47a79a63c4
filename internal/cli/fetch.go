package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/maude/internal/fetch"
	"github.com/roach88/maude/internal/metrics"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Dir         string
	Concurrency int
	Rate        float64
	Force       bool
	Ingest      bool
	Database    string
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch [url...]",
		Short: "Download the FDA MAUDE archive files",
		Long: `Download MAUDE archive files into the download directory.

With no arguments the configured URL list is used, or the built-in list of
historical FDA extracts. Files already downloaded are kept unless --force.
A failed download is reported and the others continue.

Examples:
  maude fetch
  maude fetch --ingest
  maude fetch --dir ./data https://www.accessdata.fda.gov/MAUDE/ftparea/device2008.zip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if err := runFetch(opts, args, cmd); err != nil {
				return f.Fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "download directory (default: cache_dir, else data_dir)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "parallel downloads (overrides config)")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "requests per second (overrides config)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "download files that already exist")
	cmd.Flags().BoolVar(&opts.Ingest, "ingest", false, "ingest the download directory afterwards")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for --ingest (overrides config)")

	return cmd
}

func runFetch(opts *FetchOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Concurrency > 0 {
		cfg.Fetch.Concurrency = opts.Concurrency
	}
	if opts.Rate > 0 {
		cfg.Fetch.RequestsPerSecond = opts.Rate
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	dir := cfg.DownloadDir()
	if opts.Dir != "" {
		dir = opts.Dir
	}

	urls := args
	if len(urls) == 0 {
		urls = cfg.Fetch.URLs
	}
	if len(urls) == 0 {
		urls = fetch.DefaultURLs()
	}

	logger := opts.logger(cmd)
	ctx, stop := commandContext(cmd)
	defer stop()

	f := fetch.New(dir,
		fetch.WithConcurrency(cfg.Fetch.Concurrency),
		fetch.WithRate(cfg.Fetch.RequestsPerSecond),
		fetch.WithForce(opts.Force),
		fetch.WithLogger(logger),
	)

	results, err := f.Fetch(ctx, urls)
	if err != nil {
		return WrapExitError(ExitFailure, ErrCodeFetch, "fetch failed", err)
	}

	out := opts.formatter(cmd)
	if err := out.Success(fetchReport(results)); err != nil {
		return err
	}

	failed := fetchReport(results).failed()
	if !opts.Ingest {
		return downloadFailure(failed, len(results))
	}

	st, err := openStore(cfg.Database, true)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	summary, runErr := ingestDir(ctx, st, cfg, dir, logger, metrics.New(), nil, nil)
	if err := out.Success(newIngestReport(summary)); err != nil {
		return err
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, ErrCodeIngest, "ingest aborted", runErr)
	}
	if summary.Errored > 0 {
		return NewExitError(ExitFailure, ErrCodeIngest, fmt.Sprintf("%d of %d files errored", summary.Errored, len(summary.Files)))
	}
	return downloadFailure(failed, len(results))
}

// downloadFailure reports failed downloads after the others have been kept.
func downloadFailure(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, ErrCodeFetch, fmt.Sprintf("%d of %d downloads failed", failed, total))
}

type fetchReport []fetch.Result

func (r fetchReport) failed() int {
	n := 0
	for _, res := range r {
		if res.Err != nil {
			n++
		}
	}
	return n
}

func (r fetchReport) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, res := range r {
		detail := fmt.Sprintf("%d bytes", res.Bytes)
		if res.Err != nil {
			detail = res.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", res.URL, res.Status, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	failed := r.failed()
	_, err := fmt.Fprintf(w, "%d/%d files available, %d failed\n", len(r)-failed, len(r), failed)
	return err
}
