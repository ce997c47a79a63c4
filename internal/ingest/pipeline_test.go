package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maude/internal/classify"
	"github.com/roach88/maude/internal/record"
	"github.com/roach88/maude/internal/store"
	"github.com/roach88/maude/internal/testutil"
)

func setupTestPipeline(t *testing.T, opts ...PipelineOption) (*Pipeline, *store.Store) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "maude.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := []PipelineOption{
		WithLogger(testutil.DiscardLogger()),
		WithClock(testutil.NewDeterministicClock()),
		WithRunIDs(testutil.NewSequenceRunIDs("run")),
	}
	return NewPipeline(s, append(base, opts...)...), s
}

func writeSampleArchive(t *testing.T, dir string) {
	t.Helper()

	testutil.WriteZip(t, dir, "foitext1996.zip", map[string][]byte{
		"foitext1996.txt": testutil.Latin1(testutil.PipeText(
			[]string{"MDR_REPORT_KEY", "FOI_TEXT"},
			[]string{"1", "Pump occluded during infusion"},
			[]string{"2", "Catheter fracture noted"},
		)),
	})
	testutil.WriteFile(t, dir, "device2000.txt", testutil.Latin1(testutil.PipeText(
		[]string{"MDR_REPORT_KEY", "BRAND_NAME", "GENERIC_NAME"},
		[]string{"1", "FlowMax", "Infusion pump"},
		[]string{"3", "Vena", "Catheter"},
		[]string{"4", "Cardio", "Pacemaker"},
	)))
}

func countRows(t *testing.T, s *store.Store) map[record.Kind]int64 {
	t.Helper()
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)

	out := map[record.Kind]int64{}
	for _, tbl := range stats.Tables {
		out[tbl.Kind] = tbl.Rows
	}
	return out
}

func TestIngest_FirstRun(t *testing.T) {
	dir := t.TempDir()
	writeSampleArchive(t, dir)
	p, s := setupTestPipeline(t)

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Errored)
	assert.Equal(t, 5, summary.RowsInserted)
	assert.Equal(t, int64(5), summary.Stats.Rows())

	require.Len(t, summary.Files, 2)
	assert.Equal(t, "device2000.txt", summary.Files[0].Name)
	assert.Equal(t, record.KindDevice, summary.Files[0].Kind)
	assert.Equal(t, 3, summary.Files[0].Rows)
	assert.Equal(t, record.KindFoiText, summary.Files[1].Kind)

	counts := countRows(t, s)
	assert.Equal(t, int64(3), counts[record.KindDevice])
	assert.Equal(t, int64(2), counts[record.KindFoiText])
	assert.Equal(t, int64(0), counts[record.KindFoiDev])

	cols, err := s.Columns(context.Background(), record.KindDevice)
	require.NoError(t, err)
	assert.Equal(t, []string{"mdr_report_key", "brand_name", "generic_name"}, cols)

	ledger, err := s.Ledger(context.Background())
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	for _, e := range ledger {
		assert.Equal(t, "run-1", e.RunID)
		assert.NotEmpty(t, e.FileHash)
	}
}

func TestIngest_SecondRunIsNoOp(t *testing.T) {
	dir := t.TempDir()
	writeSampleArchive(t, dir)
	p, s := setupTestPipeline(t)
	ctx := context.Background()

	_, err := p.Ingest(ctx, dir)
	require.NoError(t, err)
	before := countRows(t, s)
	ledgerBefore, err := s.Ledger(ctx)
	require.NoError(t, err)

	summary, err := p.Ingest(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, "run-2", summary.RunID)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.RowsInserted)
	for _, f := range summary.Files {
		assert.Equal(t, StatusSkipped, f.Status)
		assert.Equal(t, ReasonAlreadyIngested, f.Reason)
	}

	assert.Equal(t, before, countRows(t, s))
	ledgerAfter, err := s.Ledger(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledgerBefore, ledgerAfter)
}

func TestIngest_RenamedCopyIsSkipped(t *testing.T) {
	data := testutil.Latin1(testutil.PipeText(
		[]string{"MDR_REPORT_KEY", "FOI_TEXT"},
		[]string{"1", "Pump occluded"},
	))
	p, _ := setupTestPipeline(t)
	ctx := context.Background()

	first := t.TempDir()
	testutil.WriteFile(t, first, "foitext1996.txt", data)
	_, err := p.Ingest(ctx, first)
	require.NoError(t, err)

	second := t.TempDir()
	testutil.WriteFile(t, second, "foitext_copy.txt", data)
	summary, err := p.Ingest(ctx, second)
	require.NoError(t, err)

	require.Len(t, summary.Files, 1)
	assert.Equal(t, StatusSkipped, summary.Files[0].Status)
	assert.Equal(t, ReasonAlreadyIngested, summary.Files[0].Reason)
}

func TestIngest_RowFingerprintIgnoresColumnOrder(t *testing.T) {
	p, s := setupTestPipeline(t)
	ctx := context.Background()

	first := t.TempDir()
	testutil.WriteFile(t, first, "device2001.txt", testutil.Latin1(testutil.PipeText(
		[]string{"MDR_REPORT_KEY", "BRAND_NAME"},
		[]string{"1", "FlowMax"},
		[]string{"2", "Vena"},
	)))
	_, err := p.Ingest(ctx, first)
	require.NoError(t, err)

	// Same records with columns swapped, plus one new record. The file
	// fingerprint differs, so only row fingerprints prevent duplicates.
	second := t.TempDir()
	testutil.WriteFile(t, second, "device2002.txt", testutil.Latin1(testutil.PipeText(
		[]string{"BRAND_NAME", "MDR_REPORT_KEY"},
		[]string{"FlowMax", "1"},
		[]string{"Vena", "2"},
		[]string{"Cardio", "3"},
	)))
	summary, err := p.Ingest(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.RowsInserted)
	assert.Equal(t, int64(3), countRows(t, s)[record.KindDevice])
}

func TestIngest_DuplicateRowsWithinFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "device2003.txt", testutil.Latin1(testutil.PipeText(
		[]string{"MDR_REPORT_KEY", "BRAND_NAME"},
		[]string{"1", "FlowMax"},
		[]string{"1", "FlowMax"},
		[]string{"1", " FlowMax "},
	)))
	p, s := setupTestPipeline(t)

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RowsInserted)
	assert.Equal(t, int64(1), countRows(t, s)[record.KindDevice])
}

func TestIngest_NewColumnsWidenTable(t *testing.T) {
	p, s := setupTestPipeline(t)
	ctx := context.Background()

	first := t.TempDir()
	testutil.WriteFile(t, first, "device2000.txt", []byte("MDR_REPORT_KEY|BRAND_NAME\n1|FlowMax\n"))
	_, err := p.Ingest(ctx, first)
	require.NoError(t, err)

	second := t.TempDir()
	testutil.WriteFile(t, second, "device2008.txt", []byte("MDR_REPORT_KEY|BRAND_NAME|UDI-DI\n2|Vena|00843\n"))
	_, err = p.Ingest(ctx, second)
	require.NoError(t, err)

	cols, err := s.Columns(ctx, record.KindDevice)
	require.NoError(t, err)
	assert.Equal(t, []string{"mdr_report_key", "brand_name", "udi_di"}, cols)
	assert.Equal(t, int64(2), countRows(t, s)[record.KindDevice])
}

func TestIngest_MalformedRecordsDropped(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "device2004.txt", []byte("A|B|C\n1|2|3\n4|5\n6|7|8\n"))
	p, _ := setupTestPipeline(t)

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, summary.Files, 1)
	f := summary.Files[0]
	assert.Equal(t, StatusProcessed, f.Status)
	assert.Equal(t, 2, f.Rows)
	assert.Equal(t, 1, f.Dropped)
	assert.Equal(t, 1, summary.RowsDropped)
}

func TestIngest_CorruptArchiveDoesNotStopRun(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTruncatedZip(t, dir, "device2001.zip", map[string][]byte{
		"device2001.txt": []byte("MDR_REPORT_KEY|BRAND_NAME\n9|Broken\n"),
	})
	testutil.WriteFile(t, dir, "device2002.txt", []byte("MDR_REPORT_KEY|BRAND_NAME\n1|FlowMax\n"))
	testutil.WriteFile(t, dir, "foitext2002.txt", []byte("MDR_REPORT_KEY|FOI_TEXT\n1|Pump occluded\n"))
	p, s := setupTestPipeline(t)

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, StatusErrored, summary.Files[0].Status)
	assert.True(t, IsFileError(summary.Files[0].Err))

	counts := countRows(t, s)
	assert.Equal(t, int64(1), counts[record.KindDevice])
	assert.Equal(t, int64(1), counts[record.KindFoiText])

	// The errored file is not in the ledger, so a fixed copy is picked up later.
	ledger, err := s.Ledger(context.Background())
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}

func TestIngest_UnknownKindSkipped(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "misc.txt", []byte("X|Y\n1|2\n"))
	p, s := setupTestPipeline(t)
	ctx := context.Background()

	summary, err := p.Ingest(ctx, dir)
	require.NoError(t, err)

	require.Len(t, summary.Files, 1)
	f := summary.Files[0]
	assert.Equal(t, StatusSkipped, f.Status)
	assert.Equal(t, ReasonUnknownKind, f.Reason)
	var ce *classify.ClassificationError
	assert.True(t, errors.As(f.Err, &ce))

	ledger, err := s.Ledger(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledger)
	assert.Equal(t, int64(0), summary.Stats.Rows())
}

func TestIngest_UnreadableUnknownNameSkipped(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTruncatedZip(t, dir, "scratch.zip", map[string][]byte{
		"scratch.txt": []byte("X|Y\n1|2\n"),
	})
	testutil.WriteTruncatedZip(t, dir, "device2001.zip", map[string][]byte{
		"device2001.txt": []byte("MDR_REPORT_KEY|BRAND_NAME\n9|Broken\n"),
	})
	p, _ := setupTestPipeline(t)

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	byName := map[string]FileResult{}
	for _, f := range summary.Files {
		byName[f.Name] = f
	}
	assert.Equal(t, StatusSkipped, byName["scratch.zip"].Status)
	assert.Equal(t, ReasonUnknownKind, byName["scratch.zip"].Reason)
	var ce *classify.ClassificationError
	assert.True(t, errors.As(byName["scratch.zip"].Err, &ce))

	// A recognised name still errors when it cannot be read.
	assert.Equal(t, StatusErrored, byName["device2001.zip"].Status)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Skipped)
}

func TestIngest_HeaderClassification(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteZip(t, dir, "extract.zip", map[string][]byte{
		"part1.txt": []byte("MDR_REPORT_KEY|FOI_TEXT\n1|Pump occluded\n"),
	})
	p, s := setupTestPipeline(t)

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, summary.Files, 1)
	assert.Equal(t, record.KindFoiText, summary.Files[0].Kind)
	assert.Equal(t, int64(1), countRows(t, s)[record.KindFoiText])
}

func TestIngest_ZipWithSeveralMembers(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteZip(t, dir, "foidev1998.zip", map[string][]byte{
		"foidev1998a.txt": []byte("MDR_REPORT_KEY|BRAND_NAME\n1|FlowMax\n"),
		"foidev1998b.txt": []byte("MDR_REPORT_KEY|MODEL_NUMBER\n2|M-100\n"),
	})
	p, s := setupTestPipeline(t)

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RowsInserted)
	cols, err := s.Columns(context.Background(), record.KindFoiDev)
	require.NoError(t, err)
	assert.Equal(t, []string{"mdr_report_key", "brand_name", "model_number"}, cols)
}

type panicClassifier struct{}

func (panicClassifier) Classify(name string, _ []string) record.Kind {
	if name == "device2000.txt" {
		panic("boom")
	}
	return classify.New().Classify(name, nil)
}

func TestIngest_PanicIsContainedToFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "device2000.txt", []byte("MDR_REPORT_KEY\n1\n"))
	testutil.WriteFile(t, dir, "foitext2000.txt", []byte("MDR_REPORT_KEY|FOI_TEXT\n1|ok\n"))
	p, _ := setupTestPipeline(t, WithClassifier(panicClassifier{}))

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Processed)
	assert.Contains(t, summary.Files[0].Err.Error(), "panic")
}

func TestIngest_ClosedStoreAbortsRun(t *testing.T) {
	dir := t.TempDir()
	writeSampleArchive(t, dir)
	p, s := setupTestPipeline(t)
	require.NoError(t, s.Close())

	summary, err := p.Ingest(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, store.IsStoreError(err))
	assert.Len(t, summary.Files, 1)
	assert.Equal(t, 1, summary.Errored)
}

func TestIngest_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeSampleArchive(t, dir)
	p, _ := setupTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Ingest(ctx, dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, summary.Files)
}

func TestIngest_MissingDirectory(t *testing.T) {
	p, _ := setupTestPipeline(t)
	_, err := p.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

type observation struct {
	kind, status  string
	rows, dropped int
}

type fakeRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *fakeRecorder) ObserveFile(kind, status string, rows, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{kind, status, rows, dropped})
}

func TestIngest_RecorderSeesEveryFile(t *testing.T) {
	dir := t.TempDir()
	writeSampleArchive(t, dir)
	testutil.WriteFile(t, dir, "misc.txt", []byte("X\n1\n"))
	rec := &fakeRecorder{}
	p, _ := setupTestPipeline(t, WithRecorder(rec))

	_, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []observation{
		{"device", "processed", 3, 0},
		{"foitext", "processed", 2, 0},
		{"unknown", "skipped", 0, 0},
	}, rec.obs)
}

func TestIngest_ReaderOptions(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "device2005.csv", []byte("MDR_REPORT_KEY,BRAND_NAME\n1,Fl\xc3\xb6wMax\n"))
	p, s := setupTestPipeline(t, WithReaderOptions(Options{Delimiter: DelimiterAuto, Encoding: EncodingUTF8}))

	summary, err := p.Ingest(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RowsInserted)

	rows, err := s.Query(context.Background(), `SELECT brand_name FROM device`)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var brand string
	require.NoError(t, rows.Scan(&brand))
	assert.Equal(t, "FlöwMax", brand)
}
