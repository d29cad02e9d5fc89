package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const threadFixture = `[
  {"kind":"Listing","data":{"children":[
    {"kind":"t3","data":{
      "title":"What is quicksort?",
      "author":"asker",
      "subreddit":"algorithms",
      "created_utc":1735689600,
      "score":42,
      "num_comments":3,
      "over_18":false,
      "selftext":"Please explain quicksort.",
      "name":"t3_abc123"
    }}
  ]}},
  {"kind":"Listing","data":{"children":[
    {"kind":"t1","data":{
      "author":"alice","body":"It is divide and conquer.","score":10,
      "replies":{"kind":"Listing","data":{"children":[
        {"kind":"t1","data":{"author":"bob","body":"With a pivot.","score":5,"replies":""}}
      ]}}
    }},
    {"kind":"more","data":{"children":["d1","d2"]}}
  ]}}
]`

const moreFixture = `{"json":{"data":{"things":[
  {"kind":"t1","data":{"author":"carol","body":"Average case n log n.","score":3,"replies":""}}
]}}}`

const indexFixture = `{"kind":"Listing","data":{"children":[
  {"kind":"t3","data":{"title":"Post one","author":"u1","score":5,"num_comments":2,"url":"https://example.com/1"}},
  {"kind":"t3","data":{"title":"Post two","author":"u2","score":9,"num_comments":0,"url":"https://example.com/2"}}
]}}`

func fastSleep(_ context.Context, _ time.Duration) error { return nil }

func newRedditServer(t *testing.T, handler http.HandlerFunc) *Reddit {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := NewReddit(RedditConfig{BaseURL: srv.URL})
	r.sleep = fastSleep
	return r
}

func TestReddit_NormalizeURL(t *testing.T) {
	r := NewReddit(RedditConfig{})

	tests := []struct {
		input    string
		expected string
	}{
		{
			"http://reddit.com/r/golang/comments/abc/title/",
			"https://www.reddit.com/r/golang/comments/abc/title.json?limit=1000",
		},
		{
			"https://www.reddit.com/r/golang",
			"https://www.reddit.com/r/golang.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.NormalizeRedditURL(tt.input)
			if err != nil {
				t.Fatalf("NormalizeRedditURL() error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeRedditURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestReddit_ThreadExtraction(t *testing.T) {
	var moreForm struct {
		linkID   string
		children string
		depth    string
	}
	r := newRedditServer(t, func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, "morechildren") {
			_ = req.ParseForm()
			moreForm.linkID = req.PostForm.Get("link_id")
			moreForm.children = req.PostForm.Get("children")
			moreForm.depth = req.PostForm.Get("depth")
			fmt.Fprint(w, moreFixture)
			return
		}
		if req.URL.Query().Get("limit") != "1000" {
			t.Errorf("thread request missing limit=1000: %s", req.URL.String())
		}
		fmt.Fprint(w, threadFixture)
	})

	text, err := r.Extract(context.Background(), "https://www.reddit.com/r/algorithms/comments/abc123/what_is_quicksort/")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	for _, want := range []string{
		"Title: What is quicksort?",
		"r/algorithms",
		"u/asker",
		"Please explain quicksort.",
		"alice: It is divide and conquer. [10]",
		"  bob: With a pivot. [5]",
		"carol: Average case n log n. [3]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	if moreForm.linkID != "t3_abc123" {
		t.Errorf("morechildren link_id = %q, want t3_abc123", moreForm.linkID)
	}
	if moreForm.children != "d1,d2" {
		t.Errorf("morechildren children = %q, want d1,d2", moreForm.children)
	}
	if moreForm.depth != "0" {
		t.Errorf("morechildren depth = %q, want 0", moreForm.depth)
	}
}

func TestReddit_More429ThenSuccess(t *testing.T) {
	var moreCalls atomic.Int32
	r := newRedditServer(t, func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, "morechildren") {
			if moreCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, moreFixture)
			return
		}
		fmt.Fprint(w, threadFixture)
	})

	text, err := r.Extract(context.Background(), "https://www.reddit.com/r/a/comments/abc123/t/")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !strings.Contains(text, "carol: Average case n log n. [3]") {
		t.Errorf("subtree should be fully fetched after 429 retry:\n%s", text)
	}
	if got := moreCalls.Load(); got != 2 {
		t.Errorf("morechildren called %d times, want 2", got)
	}
}

func TestReddit_MoreFailureAbandonsSubtree(t *testing.T) {
	r := newRedditServer(t, func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, "morechildren") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, threadFixture)
	})

	text, err := r.Extract(context.Background(), "https://www.reddit.com/r/a/comments/abc123/t/")
	if err != nil {
		t.Fatalf("Extract() should not fail when a more-subtree is abandoned: %v", err)
	}
	if !strings.Contains(text, "alice: It is divide and conquer. [10]") {
		t.Error("existing comments should survive an abandoned subtree")
	}
	if strings.Contains(text, "carol") {
		t.Error("abandoned subtree content should be absent")
	}
}

func TestReddit_IndexExtraction(t *testing.T) {
	r := newRedditServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexFixture)
	})

	text, err := r.Extract(context.Background(), "https://www.reddit.com/r/golang")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	for _, want := range []string{
		"Title: Post one",
		"Author: u/u1 | Score: 5 | Comments: 2",
		"URL: https://example.com/1",
		"Title: Post two",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestReddit_BadStatus(t *testing.T) {
	r := newRedditServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := r.Extract(context.Background(), "https://www.reddit.com/r/golang")
	if err == nil {
		t.Fatal("Extract() should fail on non-2xx status")
	}
}

func TestChunking_MoreIDs(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("id%d", i)
	}

	var got []int
	var chunks []moreItem
	remaining := ids
	for len(remaining) > 0 {
		n := min(len(remaining), moreChunkSize)
		chunks = append(chunks, moreItem{ids: remaining[:n], depth: 1})
		remaining = remaining[n:]
	}
	for _, c := range chunks {
		got = append(got, len(c.ids))
	}

	want := []int{100, 100, 50}
	if len(got) != len(want) {
		t.Fatalf("chunk sizes %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d size %d, want %d", i, got[i], want[i])
		}
	}
}
