package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(cycleID string, profileID uint64, outcome string, started time.Time) Record {
	return Record{
		CycleID:    cycleID,
		ProfileID:  profileID,
		PivotID:    profileID - 1,
		Outcome:    outcome,
		Reason:     "dispatch",
		Dispatched: []string{"spma"},
		Cleared:    []string{},
		DurationMS: 12.5,
		StartedAt:  started,
	}
}

func TestAppendAndRecent(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, record("c1", 2, "success", base)))
	require.NoError(t, s.Append(ctx, record("c2", 3, "failure", base.Add(time.Minute))))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c2", recent[0].CycleID, "newest first")
	assert.Equal(t, []string{"spma"}, recent[0].Dispatched)
	assert.Equal(t, base.Add(time.Minute), recent[0].StartedAt)
}

func TestByProfile(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Append(ctx, record("c1", 5, "failure", base)))
	require.NoError(t, s.Append(ctx, record("c2", 5, "success", base.Add(time.Minute))))
	require.NoError(t, s.Append(ctx, record("c3", 6, "success", base.Add(2*time.Minute))))

	got, err := s.ByProfile(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].CycleID, "oldest first")
	assert.Equal(t, "c2", got[1].CycleID)
}

func TestRange(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, record("c1", 1, "success", base)))
	require.NoError(t, s.Append(ctx, record("c2", 2, "success", base.Add(time.Hour))))

	got, err := s.Range(ctx, base.Add(30*time.Minute), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].CycleID)
}

func TestPersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, record("c1", 1, "success", time.Now().UTC())))
	require.NoError(t, s.Close())

	s2, err := NewStore(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
