package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const ddgFixture = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fquicksort">Quicksort - Example</a>
  <a class="result__snippet">Quicksort is a sorting algorithm.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.org/sorting">Sorting overview</a>
  <a class="result__snippet">All about sorting.</a>
</div>
</body></html>`

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newDDGServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *DuckDuckGo) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d := NewDuckDuckGo(DuckDuckGoConfig{BaseURL: srv.URL + "/html/"})
	d.sleep = noSleep
	return srv, d
}

func TestDuckDuckGo_ParsesResults(t *testing.T) {
	var queries []string
	_, d := newDDGServer(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		fmt.Fprint(w, ddgFixture)
	})

	results, err := d.Search(context.Background(), "quicksort")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	// 5 variations, deduplicated to 2 unique URLs.
	if len(queries) != 5 {
		t.Errorf("issued %d queries, want 5 variations", len(queries))
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Quicksort - Example" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].Snippet != "Quicksort is a sorting algorithm." {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
	// Protocol-relative hrefs get an https scheme.
	if results[0].URL[:6] != "https:" {
		t.Errorf("URL not normalized: %q", results[0].URL)
	}
}

func TestDuckDuckGo_EmptyQuery(t *testing.T) {
	d := NewDuckDuckGo(DuckDuckGoConfig{})
	_, err := d.Search(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Search() = %v, want %v", err, ErrInvalidQuery)
	}
}

func TestDuckDuckGo_VariationErrorsSwallowed(t *testing.T) {
	calls := 0
	_, d := newDDGServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, ddgFixture)
	})

	results, err := d.Search(context.Background(), "quicksort")
	if err != nil {
		t.Fatalf("Search() should swallow per-variation errors: %v", err)
	}
	if len(results) == 0 {
		t.Error("expected results from surviving variations")
	}
}

func TestDuckDuckGo_AllVariationsFail(t *testing.T) {
	_, d := newDDGServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := d.Search(context.Background(), "quicksort")
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("Search() = %v, want %v", err, ErrNoResults)
	}
}

func TestDuckDuckGo_CancellationDuringDelay(t *testing.T) {
	_, d := newDDGServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, ddgFixture)
	})
	d.sleep = sleepCtx
	d.cfg.QueryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Search(ctx, "quicksort")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Search() = %v, want context.Canceled", err)
	}
}
