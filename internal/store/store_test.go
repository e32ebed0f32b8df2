package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "editguard.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Ping(context.Background()))
}

func TestResults_SaveGetHistory(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.SaveResult(ctx, ResultRecord{
			ID:          id,
			IntakeID:    "in-" + id,
			ModeID:      "grammar",
			Success:     i != 1,
			ChangeCount: i,
			Processing:  1500 * time.Millisecond,
			Payload:     json.RawMessage(`{"id":"` + id + `"}`),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := s.GetResult(ctx, "r2")
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Equal(t, 1, got.ChangeCount)
	assert.Equal(t, 1500*time.Millisecond, got.Processing)
	assert.JSONEq(t, `{"id":"r2"}`, string(got.Payload))
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

	hist, err := s.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "r3", hist[0].ID)
	assert.Equal(t, "r2", hist[1].ID)

	_, err = s.GetResult(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResults_Upsert(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	rec := ResultRecord{ID: "r1", IntakeID: "i", ModeID: "grammar"}
	require.NoError(t, s.SaveResult(ctx, rec))
	rec.Success = true
	rec.ChangeCount = 4
	require.NoError(t, s.SaveResult(ctx, rec))

	got, err := s.GetResult(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, 4, got.ChangeCount)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["results"])
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	seq1, err := s.AppendJournal(ctx, JournalEntry{JobID: "job-1", Adapter: "journal", Text: "a", Changes: json.RawMessage(`[{"id":"chg_001"}]`)})
	require.NoError(t, err)
	seq2, err := s.AppendJournal(ctx, JournalEntry{JobID: "job-2", Adapter: "journal", Text: "b"})
	require.NoError(t, err)
	assert.Greater(t, seq2, seq1)

	entries, err := s.Journal(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Text)
	assert.JSONEq(t, `[{"id":"chg_001"}]`, string(entries[0].Changes))

	all, err := s.Journal(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.JSONEq(t, `[]`, string(all[1].Changes))
}
