package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maude/internal/testutil"
)

// archiveServer serves fixed bodies by path and counts requests.
type archiveServer struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	files map[string]string
}

func newArchiveServer(t *testing.T, files map[string]string) *archiveServer {
	t.Helper()
	s := &archiveServer{hits: map[string]int{}, files: files}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		body, ok := s.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *archiveServer) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func newTestFetcher(dir string, opts ...Option) *Fetcher {
	base := []Option{WithLogger(testutil.DiscardLogger()), WithRate(0)}
	return New(dir, append(base, opts...)...)
}

func TestDefaultURLs(t *testing.T) {
	urls := DefaultURLs()
	require.Len(t, urls, 26)
	assert.Equal(t, "https://www.accessdata.fda.gov/MAUDE/ftparea/foidevthru1997.zip", urls[0])
	assert.Equal(t, "https://www.accessdata.fda.gov/MAUDE/ftparea/foitext2008.zip", urls[len(urls)-1])
	for _, u := range urls {
		assert.True(t, strings.HasPrefix(u, BaseURL))
	}
}

func TestFetch_DownloadsAndReportsFailures(t *testing.T) {
	srv := newArchiveServer(t, map[string]string{
		"/device2000.zip":  "device bytes",
		"/foitext1996.zip": "foitext bytes",
	})
	dir := filepath.Join(t.TempDir(), "cache")
	f := newTestFetcher(dir, WithConcurrency(2))

	urls := []string{
		srv.URL + "/device2000.zip",
		srv.URL + "/missing.zip",
		srv.URL + "/foitext1996.zip",
	}
	results, err := f.Fetch(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, StatusDownloaded, results[0].Status)
	assert.Equal(t, int64(len("device bytes")), results[0].Bytes)
	data, err := os.ReadFile(filepath.Join(dir, "device2000.zip"))
	require.NoError(t, err)
	assert.Equal(t, "device bytes", string(data))

	assert.Equal(t, StatusFailed, results[1].Status)
	assert.ErrorContains(t, results[1].Err, "404")
	assert.NoFileExists(t, filepath.Join(dir, "missing.zip"))

	assert.Equal(t, StatusDownloaded, results[2].Status)
	assert.Equal(t, urls[2], results[2].URL)
}

func TestFetch_SkipsCachedFiles(t *testing.T) {
	srv := newArchiveServer(t, map[string]string{"/device2001.zip": "fresh"})
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "device2001.zip", []byte("cached"))

	results, err := newTestFetcher(dir).Fetch(context.Background(), []string{srv.URL + "/device2001.zip"})
	require.NoError(t, err)

	assert.Equal(t, StatusCached, results[0].Status)
	assert.Equal(t, int64(len("cached")), results[0].Bytes)
	assert.Equal(t, 0, srv.hitCount("/device2001.zip"))
}

func TestFetch_ForceRedownloads(t *testing.T) {
	srv := newArchiveServer(t, map[string]string{"/device2001.zip": "fresh"})
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "device2001.zip", []byte("cached"))

	results, err := newTestFetcher(dir, WithForce(true)).Fetch(context.Background(), []string{srv.URL + "/device2001.zip"})
	require.NoError(t, err)

	assert.Equal(t, StatusDownloaded, results[0].Status)
	data, err := os.ReadFile(filepath.Join(dir, "device2001.zip"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
	assert.Equal(t, 1, srv.hitCount("/device2001.zip"))
}

func TestFetch_BadURLs(t *testing.T) {
	results, err := newTestFetcher(t.TempDir()).Fetch(context.Background(), []string{
		"ftp://example.test/a.zip",
		"https://example.test/",
		"://nope",
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status, r.URL)
		assert.Error(t, r.Err)
	}
	assert.True(t, errors.Is(results[1].Err, errNoFileName))
}

func TestFetch_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("x"))
	}))
	t.Cleanup(srv.Close)

	var urls []string
	for _, name := range []string{"a.zip", "b.zip", "c.zip", "d.zip", "e.zip", "f.zip"} {
		urls = append(urls, srv.URL+"/"+name)
	}

	results, err := newTestFetcher(t.TempDir(), WithConcurrency(2)).Fetch(context.Background(), urls)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, StatusDownloaded, r.Status)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := newArchiveServer(t, map[string]string{"/device2000.zip": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newTestFetcher(t.TempDir()).Fetch(ctx, []string{srv.URL + "/device2000.zip"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, results, 1)
}

func TestFetch_UncreatableDir(t *testing.T) {
	file := testutil.WriteFile(t, t.TempDir(), "not-a-dir", []byte("x"))
	_, err := newTestFetcher(filepath.Join(file, "sub")).Fetch(context.Background(), nil)
	assert.Error(t, err)
}
