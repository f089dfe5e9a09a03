package batchlog_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/subwatch/internal/batchlog"
)

func newTestStore(t *testing.T) *batchlog.Store {
	t.Helper()
	s, err := batchlog.Open(filepath.Join(t.TempDir(), "batches.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDigestDependsOnUser(t *testing.T) {
	data := []byte("merchant,amount,date\nNETFLIX.COM,13500,2024-01-05\n")
	require.Equal(t, batchlog.Digest("u1", data), batchlog.Digest("u1", data))
	require.NotEqual(t, batchlog.Digest("u1", data), batchlog.Digest("u2", data))
}

func TestRecordIsCreateOnly(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("missing")
	require.ErrorIs(t, err, batchlog.ErrNotFound)

	first, created, err := s.Record(batchlog.Entry{Digest: "d1", UserID: "u1", Processed: 3, Skipped: 1})
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, first.RecordedAt.IsZero())

	second, created, err := s.Record(batchlog.Entry{Digest: "d1", UserID: "u1", Processed: 99})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 3, second.Processed)
	require.True(t, second.RecordedAt.Equal(first.RecordedAt))

	got, err := s.Get("d1")
	require.NoError(t, err)
	require.Equal(t, 1, got.Skipped)

	require.NoError(t, s.Forget("d1"))
	require.NoError(t, s.Forget("d1"))
	_, err = s.Get("d1")
	require.ErrorIs(t, err, batchlog.ErrNotFound)
}

func TestListByUser(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, d := range []string{"c", "a", "b"} {
		_, _, err := s.Record(batchlog.Entry{Digest: d, UserID: "u1", RecordedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	_, _, err := s.Record(batchlog.Entry{Digest: "x", UserID: "u2", RecordedAt: base})
	require.NoError(t, err)

	list, err := s.List("u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"c", "a", "b"}, []string{list[0].Digest, list[1].Digest, list[2].Digest})
}

func TestClearDropsEveryUser(t *testing.T) {
	s := newTestStore(t)
	for _, e := range []batchlog.Entry{{Digest: "a", UserID: "u1"}, {Digest: "b", UserID: "u2"}} {
		_, _, err := s.Record(e)
		require.NoError(t, err)
	}

	require.NoError(t, s.Clear())
	for _, u := range []string{"u1", "u2"} {
		got, err := s.List(u)
		require.NoError(t, err)
		require.Empty(t, got)
	}

	// the store stays usable
	_, created, err := s.Record(batchlog.Entry{Digest: "a", UserID: "u1"})
	require.NoError(t, err)
	require.True(t, created)
}
