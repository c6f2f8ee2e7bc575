package search_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/trinity-go/pkg/search"
)

func TestSnippets(t *testing.T) {
	results := []search.Result{{Snippet: "one"}, {Snippet: "  "}, {Snippet: "two"}}
	assert.Equal(t, "one\ntwo", search.Snippets(results))
	assert.Equal(t, "", search.Snippets(nil))
}

func TestGoogle_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "cx", q.Get("cx"))
		assert.Equal(t, "osmosis", q.Get("q"))
		assert.Equal(t, "10", q.Get("num"), "count is capped at 10")
		_, _ = w.Write([]byte(`{"items":[
			{"title":"Osmosis","link":"https://a.example","snippet":"Osmosis is diffusion of water."},
			{"title":"More","link":"https://b.example","snippet":"Across a membrane."}]}`))
	}))
	defer srv.Close()

	g, err := search.NewGoogle(&search.GoogleConfig{APIKey: "key", EngineID: "cx", Endpoint: srv.URL})
	require.NoError(t, err)

	results, err := g.Search(context.Background(), "osmosis", 25)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://a.example", results[0].Link)
	assert.Equal(t, "Osmosis is diffusion of water.\nAcross a membrane.", search.Snippets(results))
}

func TestGoogle_NoItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer srv.Close()

	g, err := search.NewGoogle(&search.GoogleConfig{APIKey: "k", EngineID: "c", Endpoint: srv.URL})
	require.NoError(t, err)

	results, err := g.Search(context.Background(), "nothing", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = search.FirstLink(context.Background(), g, "nothing")
	assert.ErrorIs(t, err, search.ErrNoResults)
}

func TestGoogle_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"link":"https://chrome.example"}]}`))
	}))
	defer srv.Close()

	g, err := search.NewGoogle(&search.GoogleConfig{
		APIKey: "k", EngineID: "c", Endpoint: srv.URL, MaxRetries: 2, RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)

	link, err := search.FirstLink(context.Background(), g, "chrome official website")
	require.NoError(t, err)
	assert.Equal(t, "https://chrome.example", link)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGoogle_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	g, err := search.NewGoogle(&search.GoogleConfig{APIKey: "k", EngineID: "c", Endpoint: srv.URL, RetryInterval: time.Millisecond})
	require.NoError(t, err)

	_, err = g.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewGoogle_RequiresCredentials(t *testing.T) {
	_, err := search.NewGoogle(&search.GoogleConfig{APIKey: "k"})
	assert.Error(t, err)
}

const ddgPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.google.com%2Fchrome%2F&rut=x">Google Chrome</a>
  <a class="result__snippet">Fast, secure browser.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.org/">Example</a>
  <div class="result__snippet">Second result.</div>
</div>
<div class="result"><a class="result__a" href="https://third.example/">Third</a></div>
</body></html>`

func TestDuckDuckGo_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "chrome", r.PostForm.Get("q"))
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	d := search.NewDuckDuckGo(&search.DuckDuckGoConfig{Endpoint: srv.URL})

	results, err := d.Search(context.Background(), "chrome", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Google Chrome", results[0].Title)
	assert.Equal(t, "https://www.google.com/chrome/", results[0].Link)
	assert.Equal(t, "Fast, secure browser.", results[0].Snippet)
	assert.Equal(t, "https://example.org/", results[1].Link)
}

type countingSearcher struct {
	calls int
}

func (c *countingSearcher) Search(ctx context.Context, query string, n int) ([]search.Result, error) {
	c.calls++
	return []search.Result{{Snippet: query}}, nil
}

func TestCached_Search(t *testing.T) {
	next := &countingSearcher{}
	cached := search.NewCached(next, 8, time.Minute)
	ctx := context.Background()

	_, _ = cached.Search(ctx, "q", 5)
	_, _ = cached.Search(ctx, "q", 5)
	assert.Equal(t, 1, next.calls)

	_, _ = cached.Search(ctx, "q", 10)
	assert.Equal(t, 2, next.calls, "result count is part of the key")

	cached.Purge()
	_, _ = cached.Search(ctx, "q", 5)
	assert.Equal(t, 3, next.calls)
}
