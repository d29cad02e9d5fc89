package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newSearxServer(t *testing.T, handler http.HandlerFunc) *SearxNG {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewSearxNG(SearxNGConfig{BaseURL: srv.URL})
	s.sleep = noSleep
	return s
}

func searxPage(page, count int) searxngResponse {
	var resp searxngResponse
	for i := 0; i < count; i++ {
		resp.Results = append(resp.Results, searxngResult{
			Title:   fmt.Sprintf("result %d-%d", page, i),
			URL:     fmt.Sprintf("https://example.com/p%d/r%d", page, i),
			Content: "snippet",
		})
	}
	return resp
}

func TestSearxNG_Paginates(t *testing.T) {
	var pages []int
	s := newSearxServer(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageno"))
		pages = append(pages, page)
		if page > 3 {
			_ = json.NewEncoder(w).Encode(searxngResponse{})
			return
		}
		_ = json.NewEncoder(w).Encode(searxPage(page, 10))
	})

	results, err := s.Search(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 30 {
		t.Errorf("got %d results, want 30", len(results))
	}
	// Stops on the first empty page (page 4).
	if len(pages) != 4 {
		t.Errorf("requested pages %v, want 4 requests", pages)
	}
}

func TestSearxNG_StopsAtMaxResults(t *testing.T) {
	s := newSearxServer(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageno"))
		_ = json.NewEncoder(w).Encode(searxPage(page, 10))
	})

	results, err := s.Search(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 60 {
		t.Errorf("got %d results, want the 60-result cap", len(results))
	}
}

func TestSearxNG_DeduplicatesAcrossPages(t *testing.T) {
	s := newSearxServer(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageno"))
		if page > 2 {
			_ = json.NewEncoder(w).Encode(searxngResponse{})
			return
		}
		// Every page returns the same results.
		_ = json.NewEncoder(w).Encode(searxPage(1, 5))
	})

	results, err := s.Search(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5 unique", len(results))
	}
}

func TestSearxNG_Non2xxIsInvalidResponse(t *testing.T) {
	s := newSearxServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := s.Search(context.Background(), "golang")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("Search() = %v, want %v", err, ErrInvalidResponse)
	}
}

func TestSearxNG_EmptyQuery(t *testing.T) {
	s := NewSearxNG(SearxNGConfig{BaseURL: "http://localhost:1"})
	_, err := s.Search(context.Background(), "")
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Search() = %v, want %v", err, ErrInvalidQuery)
	}
}

func TestSearxNG_NoResults(t *testing.T) {
	s := newSearxServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(searxngResponse{})
	})

	_, err := s.Search(context.Background(), "golang")
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("Search() = %v, want %v", err, ErrNoResults)
	}
}
