package core_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oceanbase/trinity-go/pkg/core"
	sqliteStore "github.com/oceanbase/trinity-go/pkg/storage/sqlite"
)

func TestAsyncClient(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	store, err := sqliteStore.NewClient(&sqliteStore.Config{DBPath: filepath.Join(t.TempDir(), "async.db")})
	require.NoError(t, err)

	ac, err := core.NewAsyncClient(&core.Config{Search: core.SearchConfig{Provider: "none"}},
		core.WithStore(store),
		core.WithGenerator(&fakeGenerator{answer: longAnswer}),
		core.WithLauncher(&recorder{}),
		core.WithURLOpener(&recorder{}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	teach := ac.TeachAsync(ctx, "golang", "Go is a statically typed language from Google.")
	name := ac.DispatchAsync(ctx, "my name is Alice", "user_001")
	missing := ac.DispatchAsync(ctx, "my name is Bob", "")

	taught := <-teach
	require.NoError(t, taught.Error)
	assert.Equal(t, "Thanks, I've learned about 'golang'.", taught.Message)

	named := <-name
	require.NoError(t, named.Error)
	assert.Equal(t, core.DeltaNameSet, named.Response.Delta)

	failed := <-missing
	assert.ErrorIs(t, failed.Error, core.ErrUnauthorized)
	assert.Nil(t, failed.Response)

	resolved := <-ac.ResolveKnowledgeAsync(ctx, "golang", "user_001")
	require.NoError(t, resolved.Error)
	assert.Equal(t, "Hello Alice, "+longAnswer, resolved.Response.Text)

	feedback := <-ac.RecordFeedbackAsync(ctx, "user_001", "golang", "more")
	assert.ErrorIs(t, feedback.Error, core.ErrNotFound)

	ac.Wait()
	require.NoError(t, ac.Close())
}
