package jobs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emotu/nacex/internal/cache"
	"github.com/emotu/nacex/internal/runlog"
	"github.com/emotu/nacex/internal/store"
	"github.com/emotu/nacex/internal/taxonomy/validate"
)

const goodSource = `# Section A – Agriculture, Forestry and Fishing

This section includes the exploitation of natural resources.

###### 01 Crop and animal production

###### 01.1 Growing of non-perennial crops

###### 01.11 Growing of cereals

This class includes:
- growing of cereals such as:
* wheat
* barley

This class excludes:
- growing of rice, see 01.12

###### 01.12 Growing of rice

This class includes:
- growing of rice
`

// badSource carries a self-exclusion, a structural validation error.
const badSource = `# Section A – Agriculture, Forestry and Fishing

###### 01 Crop and animal production

###### 01.1 Growing of non-perennial crops

###### 01.11 Growing of cereals

This class excludes:
- growing of cereals, see 01.11
`

type fixture struct {
	runner *Runner
	store  *store.Store
	source string
	data   string
}

func newFixture(t *testing.T, sourceText string) *fixture {
	t.Helper()
	dir := t.TempDir()

	source := filepath.Join(dir, "nace.md")
	require.NoError(t, os.WriteFile(source, []byte(sourceText), 0o644))

	st, err := store.Open(filepath.Join(dir, "taxonomy.db"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	runs, err := runlog.OpenInMemory(time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	data := filepath.Join(dir, "exports")
	runner := NewRunner(Config{
		SourcePath: source,
		DataDir:    data,
	}, st, runs, cache.NewMemoryCache(0))

	return &fixture{runner: runner, store: st, source: source, data: data}
}

func TestRefreshSuccess(t *testing.T) {
	f := newFixture(t, goodSource)

	status, err := f.runner.Refresh(context.Background(), "startup", false)
	require.NoError(t, err)
	require.Equal(t, 2, status.Counts.Classes)
	require.Equal(t, 1, status.Counts.Sections)
	require.NotEmpty(t, status.SourceHash)
	require.Empty(t, status.Error)

	counts, err := f.store.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, counts.Classes)

	// Both exports land atomically in the data dir.
	for _, name := range []string{"scopes.json", "scopes.csv"} {
		_, err := os.Stat(filepath.Join(f.data, name))
		require.NoError(t, err, name)
	}
}

func TestRefreshExportsCarryActivities(t *testing.T) {
	f := newFixture(t, goodSource)

	_, err := f.runner.Refresh(context.Background(), "startup", false)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(f.data, "scopes.csv"))
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two classes")

	header, cereals := rows[0], rows[1]
	require.Equal(t, "included_activities", header[8])
	require.Equal(t, "excluded_activities", header[9])
	require.Equal(t, "01.11", cereals[0])
	require.Contains(t, cereals[8], "wheat", "include sub-bullets are flattened into the column")
	require.Contains(t, cereals[9], "01.12")

	raw, err = os.ReadFile(filepath.Join(f.data, "scopes.json"))
	require.NoError(t, err)
	var scopes []map[string]any
	require.NoError(t, json.Unmarshal(raw, &scopes))
	require.NotEmpty(t, scopes[0]["included_activities"])
	require.NotEmpty(t, scopes[0]["excluded_activities"])
}

func TestRefreshHashDescribesParsedContent(t *testing.T) {
	f := newFixture(t, goodSource)
	ctx := context.Background()

	_, err := f.runner.Refresh(ctx, "startup", false)
	require.NoError(t, err)

	// Replace the source and re-ingest: the recorded hash must be the
	// digest of exactly the bytes the new taxonomy was parsed from.
	updated := goodSource + `
###### 01.13 Growing of vegetables
`
	require.NoError(t, os.WriteFile(f.source, []byte(updated), 0o644))

	status, err := f.runner.Refresh(ctx, "api", true)
	require.NoError(t, err)
	require.Equal(t, 3, status.Counts.Classes)

	sum := sha256.Sum256([]byte(updated))
	require.Equal(t, hex.EncodeToString(sum[:]), status.SourceHash)
}

func TestRefreshUnchangedSourceSkipped(t *testing.T) {
	f := newFixture(t, goodSource)
	ctx := context.Background()

	_, err := f.runner.Refresh(ctx, "startup", false)
	require.NoError(t, err)

	_, err = f.runner.Refresh(ctx, "api", false)
	require.ErrorIs(t, err, ErrUnchanged)

	// Force bypasses the hash shortcut.
	_, err = f.runner.Refresh(ctx, "api", true)
	require.NoError(t, err)
}

func TestRefreshValidationFailureKeepsOldTaxonomy(t *testing.T) {
	f := newFixture(t, goodSource)
	ctx := context.Background()

	_, err := f.runner.Refresh(ctx, "startup", false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(f.source, []byte(badSource), 0o644))

	_, err = f.runner.Refresh(ctx, "api", true)
	require.ErrorIs(t, err, ErrValidationFailed)

	// Previous taxonomy still serves.
	counts, err := f.store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, counts.Classes)

	status := f.runner.Status()
	require.NotEmpty(t, status.Error)
}

func TestRefreshProfileMismatchIsWarningOnly(t *testing.T) {
	f := newFixture(t, goodSource)
	f.runner.cfg.Profile = validate.NACERev2Profile()

	status, err := f.runner.Refresh(context.Background(), "startup", false)
	require.NoError(t, err, "count mismatches warn but do not reject")
	require.Greater(t, status.Warnings, 0)
}

func TestRefreshSingleFlight(t *testing.T) {
	f := newFixture(t, goodSource)

	f.runner.running.Store(true)
	_, err := f.runner.Refresh(context.Background(), "api", false)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	f.runner.running.Store(false)

	_, err = f.runner.Refresh(context.Background(), "api", false)
	require.NoError(t, err)
}

func TestRefreshMissingSource(t *testing.T) {
	f := newFixture(t, goodSource)
	require.NoError(t, os.Remove(f.source))

	_, err := f.runner.Refresh(context.Background(), "startup", false)
	require.Error(t, err)

	status := f.runner.Status()
	require.NotEmpty(t, status.Error)
	require.True(t, status.LastSuccess.IsZero())
}

func TestWatcherTriggersIngest(t *testing.T) {
	f := newFixture(t, goodSource)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(f.runner, 50*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before touching the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(f.source, []byte(goodSource), 0o644))

	require.Eventually(t, func() bool {
		return !f.runner.Status().LastSuccess.IsZero()
	}, 5*time.Second, 20*time.Millisecond, "watcher should ingest after source change")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
