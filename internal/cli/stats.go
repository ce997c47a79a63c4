package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/maude/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Database string
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show row and column counts per table",
		Example: `  maude stats
  maude stats --db ./maude.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if err := runStats(opts, cmd); err != nil {
				return f.Fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	logger := opts.logger(cmd)

	st, err := openStore(cfg.Database, false)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeDatabase, "failed to read stats", err)
	}
	return opts.formatter(cmd).Success(statsReport{Stats: stats})
}

type statsReport struct {
	store.Stats
}

func (r statsReport) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS\tCOLUMNS")
	for _, t := range r.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Kind, t.Rows, t.Columns)
	}
	fmt.Fprintf(tw, "total\t%d\t\n", r.Rows())
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d files ingested\n", r.Files)
	return err
}
