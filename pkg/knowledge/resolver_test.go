package knowledge_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/extract"
	"github.com/oceanbase/trinity-go/pkg/knowledge"
	"github.com/oceanbase/trinity-go/pkg/search"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	puts int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) GetLearned(ctx context.Context, topic string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[topic]
	return v, ok, nil
}

func (m *memoryStore) PutLearned(ctx context.Context, topic, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.data[topic] = text
	return nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	counts  []int
	queries []string
	results map[int][]search.Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, n int) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, n)
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[n], nil
}

// scriptedGenerator answers from a context→answer table, or with a default.
type scriptedGenerator struct {
	mu       sync.Mutex
	answers  map[string]string
	fallback string
	seen     []string
}

func (g *scriptedGenerator) Answer(ctx context.Context, contextText string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, contextText)
	if a, ok := g.answers[contextText]; ok {
		return a, nil
	}
	return g.fallback, nil
}

var (
	longAnswer  = strings.Repeat("Osmosis moves water across membranes. ", 2) // > 50 runes
	shortAnswer = "Water moves."
)

func snippets(prefix string, n int) []search.Result {
	out := make([]search.Result, n)
	for i := range out {
		out[i] = search.Result{Snippet: prefix + string(rune('a'+i))}
	}
	return out
}

func newResolver(t *testing.T, store *memoryStore, s search.Searcher, g knowledge.Generator) *knowledge.Resolver {
	t.Helper()
	r, err := knowledge.NewResolver(knowledge.Config{
		Store:     store,
		Searcher:  s,
		Generator: g,
		Extractor: extract.NewRuleExtractor(),
	})
	require.NoError(t, err)
	return r
}

func TestResolver_FirstPassAccepted(t *testing.T) {
	store := newMemoryStore()
	searcher := &fakeSearcher{results: map[int][]search.Result{5: snippets("s", 5)}}
	gen := &scriptedGenerator{fallback: longAnswer}
	r := newResolver(t, store, searcher, gen)

	res, err := r.Resolve(context.Background(), "what is osmosis")
	require.NoError(t, err)

	assert.Equal(t, longAnswer, res.Answer)
	assert.Equal(t, knowledge.StageFirstPass, res.Stage)
	assert.Equal(t, 2, res.Delta)
	assert.Nil(t, res.NeedsClarification)
	assert.Equal(t, []int{5}, searcher.counts)
	assert.True(t, strings.HasPrefix(searcher.queries[0], "what is osmosis"), "refined query starts with the original")

	stored, ok, _ := store.GetLearned(context.Background(), "what is osmosis")
	require.True(t, ok)
	assert.Equal(t, "sa\nsb\nsc\nsd\nse", stored, "the evidence is cached, not the answer")
}

func TestResolver_CacheHitSkipsSearch(t *testing.T) {
	store := newMemoryStore()
	store.data["what is osmosis"] = "cached evidence"
	searcher := &fakeSearcher{}
	gen := &scriptedGenerator{fallback: longAnswer}
	r := newResolver(t, store, searcher, gen)

	for i := 0; i < 2; i++ {
		res, err := r.Resolve(context.Background(), "  What is   OSMOSIS ")
		require.NoError(t, err)
		assert.True(t, res.FromCache)
		assert.Equal(t, 2, res.Delta)
	}
	assert.Empty(t, searcher.counts)
	assert.Equal(t, 0, store.puts)
	assert.Equal(t, []string{"cached evidence", "cached evidence"}, gen.seen)
}

func TestResolver_RetryAccepted(t *testing.T) {
	store := newMemoryStore()
	searcher := &fakeSearcher{results: map[int][]search.Result{
		5:  snippets("first", 1),
		10: snippets("wide", 2),
	}}
	gen := &scriptedGenerator{answers: map[string]string{
		"firsta":       shortAnswer,
		"widea\nwideb": longAnswer,
	}}
	r := newResolver(t, store, searcher, gen)

	res, err := r.Resolve(context.Background(), "how to boil eggs")
	require.NoError(t, err)

	assert.Equal(t, knowledge.StageRetry, res.Stage)
	assert.Equal(t, 1, res.Delta)
	assert.Equal(t, longAnswer, res.Answer)
	assert.Equal(t, []int{5, 10}, searcher.counts)
	assert.Equal(t, "widea\nwideb", store.data["how to boil eggs"])
}

func TestResolver_ClarificationAndFeedback(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	searcher := &fakeSearcher{results: map[int][]search.Result{5: snippets("x", 1), 10: snippets("y", 1)}}
	gen := &scriptedGenerator{answers: map[string]string{"the real answer": longAnswer}, fallback: shortAnswer}
	r := newResolver(t, store, searcher, gen)

	res, err := r.Resolve(ctx, "what is zymurgy")
	require.NoError(t, err)
	require.NotNil(t, res.NeedsClarification)
	assert.Equal(t, knowledge.StageClarify, res.Stage)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, knowledge.ReasonLowQuality, res.NeedsClarification.Reason)
	assert.Equal(t, "what is zymurgy", res.NeedsClarification.Topic)
	assert.Equal(t, shortAnswer, res.NeedsClarification.FirstAnswer)
	assert.Empty(t, store.data, "nothing is stored before feedback")

	t.Run("declined", func(t *testing.T) {
		fb, err := r.Feedback(ctx, res.NeedsClarification, "")
		require.NoError(t, err)
		assert.Equal(t, -5, fb.Delta)
		assert.Equal(t, "No new information provided. Using initial answer:\n"+shortAnswer, fb.Answer)
		assert.Empty(t, store.data)
	})

	t.Run("supplied", func(t *testing.T) {
		fb, err := r.Feedback(ctx, res.NeedsClarification, "the real answer")
		require.NoError(t, err)
		assert.Equal(t, 5, fb.Delta)
		assert.Equal(t, "Thank you for your feedback. Here is the updated answer:\n"+longAnswer, fb.Answer)
		assert.Equal(t, "the real answer", store.data["what is zymurgy"])
	})
}

func TestResolver_UnknownTopicFeedback(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	r := newResolver(t, store, nil, &scriptedGenerator{})

	c := &knowledge.Clarification{Topic: knowledge.Normalize("Tell me a joke"), Query: "Tell me a joke", Reason: knowledge.ReasonUnknownTopic}

	fb, err := r.Feedback(ctx, c, "")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I don't have any information about 'Tell me a joke'.", fb.Answer)
	assert.Equal(t, 0, fb.Delta)

	fb, err = r.Feedback(ctx, c, "Why did the gopher cross the road?")
	require.NoError(t, err)
	assert.Equal(t, 0, fb.Delta)
	assert.Equal(t, "Why did the gopher cross the road?", fb.Answer, "empty generation falls back to the taught text")

	text, ok, err := r.Lookup(ctx, "TELL me a joke")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Why did the gopher cross the road?", text)
}

func TestResolver_SearchFailureUsesSentinel(t *testing.T) {
	store := newMemoryStore()
	searcher := &fakeSearcher{err: errors.New("quota exceeded")}
	gen := &scriptedGenerator{fallback: longAnswer}
	r := newResolver(t, store, searcher, gen)

	res, err := r.Resolve(context.Background(), "what is osmosis")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delta)
	assert.Equal(t, []string{knowledge.NoResultsContext}, gen.seen)
	assert.Empty(t, store.data, "the sentinel is never cached")
}

type blockingGenerator struct{}

func (blockingGenerator) Answer(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestResolver_GenerationTimeoutEscalates(t *testing.T) {
	r, err := knowledge.NewResolver(knowledge.Config{
		Store:           newMemoryStore(),
		Generator:       blockingGenerator{},
		GenerateTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), "what is osmosis")
	require.NoError(t, err)
	require.NotNil(t, res.NeedsClarification)
	assert.Equal(t, "", res.NeedsClarification.FirstAnswer)
}

func TestResolver_ConcurrentSameTopic(t *testing.T) {
	store := newMemoryStore()
	searcher := &fakeSearcher{results: map[int][]search.Result{5: snippets("s", 2)}}
	r := newResolver(t, store, searcher, &scriptedGenerator{fallback: longAnswer})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), "What is osmosis")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.data, 1)
	assert.Equal(t, 1, store.puts)
}

func TestResolver_Validation(t *testing.T) {
	_, err := knowledge.NewResolver(knowledge.Config{Generator: &scriptedGenerator{}})
	assert.Error(t, err)

	r := newResolver(t, newMemoryStore(), nil, &scriptedGenerator{})
	_, err = r.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, knowledge.ErrEmptyQuery)
	assert.ErrorIs(t, r.Teach(context.Background(), "", "x"), knowledge.ErrEmptyQuery)
}
