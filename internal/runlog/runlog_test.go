package runlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T, ttl time.Duration) *Log {
	t.Helper()
	l, err := OpenInMemory(ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAssignsID(t *testing.T) {
	l := openTestLog(t, time.Minute)

	run := &Run{SourcePath: "data/nace.md", Outcome: "success", StartedAt: time.Now()}
	require.NoError(t, l.Append(run))
	require.NotEmpty(t, run.ID)
}

func TestRecentNewestFirst(t *testing.T) {
	l := openTestLog(t, time.Minute)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Append(&Run{
			SourcePath: "data/nace.md",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			Classes:    i,
			Outcome:    "success",
		}))
	}

	runs, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, 2, runs[0].Classes)
	require.Equal(t, 0, runs[2].Classes)

	runs, err = l.Recent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestSeenRecently(t *testing.T) {
	l := openTestLog(t, time.Minute)

	seen, err := l.SeenRecently("deadbeef")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, l.Append(&Run{
		SourceHash: "deadbeef",
		StartedAt:  time.Now(),
		Outcome:    "success",
	}))

	seen, err = l.SeenRecently("deadbeef")
	require.NoError(t, err)
	require.True(t, seen)

	// Failed runs never set the marker.
	require.NoError(t, l.Append(&Run{
		SourceHash: "cafebabe",
		StartedAt:  time.Now(),
		Outcome:    "failed",
	}))
	seen, err = l.SeenRecently("cafebabe")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestSeenRecentlyEmptyHash(t *testing.T) {
	l := openTestLog(t, time.Minute)

	seen, err := l.SeenRecently("")
	require.NoError(t, err)
	require.False(t, seen)
}
