// Package fetch downloads the FDA MAUDE archive files into a local
// directory so they can be ingested.
//
// Downloads run concurrently up to a fixed limit and are rate limited.
// Files already present in the directory are not downloaded again. A failed
// URL is reported in its Result and never stops the others.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BaseURL is the FDA directory holding the historical MAUDE extracts.
const BaseURL = "https://www.accessdata.fda.gov/MAUDE/ftparea/"

var defaultFiles = []string{
	"foidevthru1997.zip",
	"foidev1998.zip",
	"foidev1999.zip",
	"device2000.zip",
	"device2001.zip",
	"device2002.zip",
	"device2003.zip",
	"device2004.zip",
	"device2005.zip",
	"device2006.zip",
	"device2007.zip",
	"device2008.zip",
	"foitextthru1995.zip",
	"foitext1996.zip",
	"foitext1997.zip",
	"foitext1998.zip",
	"foitext1999.zip",
	"foitext2000.zip",
	"foitext2001.zip",
	"foitext2002.zip",
	"foitext2003.zip",
	"foitext2004.zip",
	"foitext2005.zip",
	"foitext2006.zip",
	"foitext2007.zip",
	"foitext2008.zip",
}

// DefaultURLs returns the historical archive files published by the FDA.
func DefaultURLs() []string {
	urls := make([]string, len(defaultFiles))
	for i, name := range defaultFiles {
		urls[i] = BaseURL + name
	}
	return urls
}

// Status is the outcome of one URL.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusCached     Status = "cached"
	StatusFailed     Status = "failed"
)

// Result reports one URL.
type Result struct {
	URL    string `json:"url"`
	Path   string `json:"path,omitempty"`
	Status Status `json:"status"`
	Bytes  int64  `json:"bytes"`
	Error  string `json:"error,omitempty"`
	Err    error  `json:"-"`
}

// Fetcher downloads archive files into a directory.
type Fetcher struct {
	dir         string
	client      *http.Client
	concurrency int
	limiter     *rate.Limiter
	force       bool
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client. Default: a client with a 10 minute
// timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithConcurrency bounds parallel downloads. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n < 1 {
			n = 1
		}
		f.concurrency = n
	}
}

// WithRate limits request starts per second. Zero or less disables limiting.
func WithRate(perSecond float64) Option {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithForce downloads files even when they already exist.
func WithForce(force bool) Option {
	return func(f *Fetcher) { f.force = force }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher writing into dir.
func New(dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:         dir,
		client:      &http.Client{Timeout: 10 * time.Minute},
		concurrency: 4,
		limiter:     rate.NewLimiter(rate.Limit(2), 1),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads every URL. Results are in the order of urls.
//
// The error is non-nil only when the directory cannot be created or ctx is
// cancelled; per-URL failures are in the results.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]Result, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	results := make([]Result, len(urls))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = f.fetchOne(gCtx, u)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("fetch cancelled: %w", err)
	}

	var failed int
	for _, r := range results {
		if r.Status == StatusFailed {
			failed++
		}
	}
	f.logger.Info("fetch finished", "urls", len(urls), "failed", failed)
	if failed > 0 {
		f.logger.Warn("some downloads failed", "failed", failed, "total", len(urls))
	}

	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, rawURL string) Result {
	res := Result{URL: rawURL}

	failed := func(err error) Result {
		res.Status = StatusFailed
		res.Err = err
		res.Error = err.Error()
		f.logger.Error("download failed", "url", rawURL, "error", err)
		return res
	}

	name, err := fileName(rawURL)
	if err != nil {
		return failed(err)
	}
	res.Path = filepath.Join(f.dir, name)

	if !f.force {
		if info, err := os.Stat(res.Path); err == nil && info.Mode().IsRegular() {
			res.Status = StatusCached
			res.Bytes = info.Size()
			f.logger.Debug("already downloaded", "url", rawURL, "path", res.Path)
			return res
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return failed(err)
	}

	n, err := f.download(ctx, rawURL, res.Path)
	if err != nil {
		return failed(err)
	}
	res.Status = StatusDownloaded
	res.Bytes = n
	f.logger.Info("downloaded", "url", rawURL, "path", res.Path, "bytes", n)
	return res
}

// download writes the body to a temporary file next to dest and renames it
// into place, so an interrupted download never looks cached.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get %s: unexpected status %s", rawURL, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}

var errNoFileName = errors.New("url has no file name")

func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", errNoFileName
	}
	return name, nil
}
