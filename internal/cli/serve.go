package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/maude/internal/engine"
	"github.com/roach88/maude/internal/httpapi"
	"github.com/roach88/maude/internal/metrics"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only search over HTTP",
		Long: `Serve the archive over HTTP until interrupted.

Routes:
  GET /search?field=foi_text&q=pump,infusion&q=occlu&x=test&table=foitext&limit=50
  GET /stats
  GET /healthz
  GET /metrics

Do not run ingestion against the same database while serving.

Examples:
  maude serve
  maude serve --addr :9090 --db ./maude.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if err := runServe(opts, cmd); err != nil {
				return f.Fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Addr != "" {
		cfg.Serve.Addr = opts.Addr
	}
	logger := opts.logger(cmd)

	st, err := openStore(cfg.Database, false)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	m := metrics.New()
	handler := httpapi.NewHandler(httpapi.Deps{
		Searcher: engine.New(st, engine.WithLogger(logger)),
		Stats:    st,
		Observer: m,
		Metrics:  m.Handler(),
		Logger:   logger,
	})

	ln, err := net.Listen("tcp", cfg.Serve.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeGeneric, "failed to listen", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info("serving", "addr", ln.Addr().String(), "db", cfg.Database)
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on http://%s\n", ln.Addr())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, ErrCodeGeneric, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, ErrCodeGeneric, "shutdown failed", err)
	}
	return nil
}
