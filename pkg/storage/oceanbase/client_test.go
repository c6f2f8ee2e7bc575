package oceanbase_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/storage"
	"github.com/oceanbase/trinity-go/pkg/storage/oceanbase"
)

func setupOceanBaseTest(t *testing.T) (*oceanbase.Client, func()) {
	_ = godotenv.Load(filepath.Join("..", "..", "..", ".env"))

	host := os.Getenv("OCEANBASE_HOST")
	if host == "" {
		t.Skip("Skipping OceanBase test: OCEANBASE_HOST not set")
	}
	portStr := os.Getenv("OCEANBASE_PORT")
	if portStr == "" {
		portStr = "2881"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Skipf("Skipping OceanBase test: invalid OCEANBASE_PORT: %s", portStr)
	}
	user := os.Getenv("OCEANBASE_USER")
	if user == "" {
		user = "root@test"
	}
	dbName := os.Getenv("OCEANBASE_DATABASE")
	if dbName == "" {
		dbName = "trinity_test"
	}

	store, err := oceanbase.NewClient(&oceanbase.Config{
		Host:        host,
		Port:        port,
		User:        user,
		Password:    os.Getenv("OCEANBASE_PASSWORD"),
		DBName:      dbName,
		TablePrefix: fmt.Sprintf("t%d_", time.Now().UnixNano()),
	})
	if err != nil {
		t.Skipf("Skipping OceanBase test: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func TestOceanBaseClient_AdjustScore(t *testing.T) {
	store, cleanup := setupOceanBaseTest(t)
	defer cleanup()

	ctx := context.Background()

	score, err := store.AdjustScore(ctx, "ob-uid", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, score)

	score, err = store.AdjustScore(ctx, "ob-uid", -5)
	require.NoError(t, err)
	assert.Equal(t, 5, score)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AdjustScore(ctx, "ob-uid", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := store.GetProfile(ctx, "ob-uid")
	require.NoError(t, err)
	assert.Equal(t, 15, p.Score)
}

func TestOceanBaseClient_KnowledgeAndUsage(t *testing.T) {
	store, cleanup := setupOceanBaseTest(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.PutLearned(ctx, "what is oceanbase", "a distributed database"))
	require.NoError(t, store.PutLearned(ctx, "what is oceanbase", "a distributed relational database"))
	text, ok, err := store.GetLearned(ctx, "what is oceanbase")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a distributed relational database", text)

	_, ok, err = store.GetLearned(ctx, "what is missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.IncrementUsage(ctx, storage.UsageSong, "clair de lune", "classical"))
	require.NoError(t, store.IncrementUsage(ctx, storage.UsageSong, "clair de lune", ""))
	require.NoError(t, store.IncrementUsage(ctx, storage.UsageSong, "take five", ""))

	top, err := store.TopUsage(ctx, storage.UsageSong, 3)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "clair de lune", top[0].Key)
	assert.EqualValues(t, 2, top[0].Count)
	assert.Equal(t, "classical", top[0].Genre)
}
