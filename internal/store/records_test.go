package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"marcer/internal/marc"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRecord(cn, title string) *marc.Record {
	return marc.NewRecord(marc.NewLeader(),
		marc.NewEntry(marc.TagControlNumber, cn),
		marc.NewEntry(marc.TagSystemNumber, "  $a(Sirsi) "+cn),
		marc.NewEntry(marc.TagTitle, "10$a"+title),
	)
}

func openTemp(t *testing.T) *RecordStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "out", "records.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.SaveRecords(ctx, "run-1", []*marc.Record{testRecord("a1", "First")}))
	require.NoError(t, s.SaveRecords(ctx, "run-1", []*marc.Record{testRecord("a2", "Second")}))
	require.NoError(t, s.SaveRecords(ctx, "run-2", []*marc.Record{testRecord("b1", "Other")}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := s.LoadRecords(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a1", recs[0].ControlNumber())
	assert.Equal(t, "a2", recs[1].ControlNumber())

	all, err := s.LoadRecords(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	titles, err := s.FieldTexts(ctx, marc.TagTitle)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"10$aFirst", "10$aSecond", "10$aOther"}, titles); diff != "" {
		t.Errorf("FieldTexts mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncate(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.SaveRecords(ctx, "run", []*marc.Record{testRecord("a1", "x"), testRecord("a2", "y")}))
	require.NoError(t, s.Truncate(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	titles, err := s.FieldTexts(ctx, marc.TagTitle)
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveRecords(ctx, "run", []*marc.Record{testRecord("a1", "x")}))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, path, s.Path())
}
