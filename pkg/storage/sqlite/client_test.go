package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/storage"
	sqliteStore "github.com/oceanbase/trinity-go/pkg/storage/sqlite"
)

func setupSQLiteTest(t *testing.T) (*sqliteStore.Client, func()) {
	testDBPath := filepath.Join(t.TempDir(), "test_trinity.db")

	store, err := sqliteStore.NewClient(&sqliteStore.Config{DBPath: testDBPath})
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		_ = store.Close()
	}
	return store, cleanup
}

func strPtr(s string) *string { return &s }

func TestSQLiteClient_LearnedRoundTrip(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	_, ok, err := store.GetLearned(ctx, "what is osmosis")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutLearned(ctx, "what is osmosis", "first"))
	require.NoError(t, store.PutLearned(ctx, "what is osmosis", "second"))

	text, ok, err := store.GetLearned(ctx, "what is osmosis")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", text)
}

func TestSQLiteClient_Profile(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	_, err := store.GetProfile(ctx, "uid-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.UpsertProfile(ctx, "uid-1", storage.ProfileUpdate{Username: strPtr("Neo")}))
	require.NoError(t, store.UpsertProfile(ctx, "uid-1", storage.ProfileUpdate{
		Username: strPtr(""),
		Location: strPtr("Hanoi"),
	}))

	p, err := store.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Neo", p.Username)
	assert.Equal(t, "Hanoi", p.Location)
	assert.Equal(t, 0, p.Score)
}

func TestSQLiteClient_AdjustScore(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	score, err := store.AdjustScore(ctx, "uid-2", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, score)

	score, err = store.AdjustScore(ctx, "uid-2", -5)
	require.NoError(t, err)
	assert.Equal(t, 5, score)

	score, err = store.AdjustScore(ctx, "uid-2", -5)
	require.NoError(t, err)
	score, err = store.AdjustScore(ctx, "uid-2", -5)
	require.NoError(t, err)
	assert.Equal(t, -5, score, "score has no floor")
}

func TestSQLiteClient_AdjustScoreConcurrent(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.EnsureProfile(ctx, "uid-3"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AdjustScore(ctx, "uid-3", 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := store.GetProfile(ctx, "uid-3")
	require.NoError(t, err)
	assert.Equal(t, 40, p.Score)
}

func TestSQLiteClient_Usage(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.IncrementUsage(ctx, storage.UsageSong, "bohemian rhapsody", ""))
	require.NoError(t, store.IncrementUsage(ctx, storage.UsageSong, "bohemian rhapsody", "rock"))
	require.NoError(t, store.IncrementUsage(ctx, storage.UsageSong, "bohemian rhapsody", "pop"))
	require.NoError(t, store.IncrementUsage(ctx, storage.UsageSong, "yesterday", ""))

	songs, err := store.TopUsage(ctx, storage.UsageSong, 1)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "bohemian rhapsody", songs[0].Key)
	assert.Equal(t, int64(3), songs[0].Count)
	assert.Equal(t, "rock", songs[0].Genre, "genre is only filled while empty")

	require.NoError(t, store.IncrementUsage(ctx, storage.UsageApp, "chrome", ""))
	apps, err := store.TopUsage(ctx, storage.UsageApp, 3)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, int64(1), apps[0].Count)

	err = store.IncrementUsage(ctx, storage.UsageKind("video"), "x", "")
	assert.Error(t, err)
}

func TestSQLiteClient_InteractionStats(t *testing.T) {
	store, cleanup := setupSQLiteTest(t)
	defer cleanup()

	ctx := context.Background()

	stats, err := store.InteractionStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
	assert.Nil(t, stats.First)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.AppendInteraction(ctx, &storage.InteractionRecord{
			ID:        int64(i + 1),
			UID:       "uid-4",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Utterance: "hi",
			Response:  "hello",
		})
		require.NoError(t, err)
	}

	stats, err = store.InteractionStats(ctx, "uid-4")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	require.NotNil(t, stats.First)
	require.NotNil(t, stats.Last)
	assert.True(t, stats.First.Equal(base))
	assert.True(t, stats.Last.Equal(base.Add(2*time.Minute)))

	stats, err = store.InteractionStats(ctx, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
}
