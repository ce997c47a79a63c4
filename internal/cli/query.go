package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/roach88/maude/internal/engine"
	"github.com/roach88/maude/internal/queryir"
	"github.com/roach88/maude/internal/record"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Table    string
	Field    string
	Include  []string
	Exclude  []string
	Limit    int
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search the archive by term groups",
		Long: `Search one field for term groups.

Each -q flag is one include group and each -x flag one exclude group; commas
separate the terms inside a group. A record matches when every include group
has at least one term in the field, and is dropped when every exclude group
does. Matching is case-insensitive substring matching.

Without --table every table that has the field is searched.

Examples:
  maude query --field foi_text -q "pump,infusion" -q occlu
  maude query --table device --field brand_name -q flowmax --limit 20
  maude query --field foi_text -q pacemaker -x "test,demo" --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if err := runQuery(opts, cmd); err != nil {
				return f.Fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table to search: device, foitext or foidev (default: every table with the field)")
	cmd.Flags().StringVar(&opts.Field, "field", "", "field to match against (required)")
	cmd.Flags().StringArrayVarP(&opts.Include, "include", "q", nil, "include group, comma-separated terms (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.Exclude, "exclude", "x", nil, "exclude group, comma-separated terms (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records to return (0 = no limit)")
	_ = cmd.MarkFlagRequired("field")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
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

	req := engine.Request{
		Table:   opts.Table,
		Field:   opts.Field,
		Include: splitGroups(opts.Include),
		Exclude: splitGroups(opts.Exclude),
		Limit:   opts.Limit,
	}

	records, err := engine.New(st, engine.WithLogger(logger)).Query(cmd.Context(), req)
	if err != nil {
		if engine.IsValidationError(err) {
			return WrapExitError(ExitCommandError, ErrCodeValidation, "invalid query", err)
		}
		return WrapExitError(ExitFailure, ErrCodeDatabase, "query failed", err)
	}

	return opts.formatter(cmd).Success(queryReport{
		Field:   record.NormalizeColumn(opts.Field),
		Count:   len(records),
		Records: records,
	})
}

func splitGroups(groups []string) [][]string {
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, queryir.SplitTerms(g))
	}
	return out
}

type queryReport struct {
	Field   string          `json:"field"`
	Count   int             `json:"count"`
	Records []engine.Record `json:"records"`
}

const snippetLen = 100

// RenderText prints source, short row hash and the matched field per record.
func (r queryReport) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rec := range r.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.Source, short(rec.Hash), snippet(rec.Fields[r.Field]))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d records\n", r.Count)
	return err
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= snippetLen {
		return s
	}
	return string([]rune(s)[:snippetLen]) + "..."
}
