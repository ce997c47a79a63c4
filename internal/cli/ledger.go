package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/maude/internal/store"
)

// LedgerOptions holds flags for the ledger command.
type LedgerOptions struct {
	*RootOptions
	Database string
}

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List ingested source files",
		Long: `List every source file recorded in the ingestion log, oldest first.

A file appears here once its rows were committed. Its fingerprint is what
makes later runs skip it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if err := runLedger(opts, cmd); err != nil {
				return f.Fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	return cmd
}

func runLedger(opts *LedgerOptions, cmd *cobra.Command) error {
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

	entries, err := st.Ledger(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeDatabase, "failed to read ledger", err)
	}
	return opts.formatter(cmd).Success(ledgerReport(entries))
}

type ledgerReport []store.LedgerEntry

func (r ledgerReport) RenderText(w io.Writer) error {
	if len(r) == 0 {
		_, err := fmt.Fprintln(w, "No files ingested")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INGESTED\tFILE\tKIND\tROWS\tDROPPED\tFINGERPRINT")
	for _, e := range r {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			e.IngestedAt.Format(time.RFC3339), e.FileName, e.Kind, e.RowsInserted, e.RowsDropped, short(e.FileHash))
	}
	return tw.Flush()
}

// short abbreviates a hex fingerprint for display.
func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
