package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jmylchreest/delver/internal/logger"
)

// RedditConfig holds settings for the reddit extractor.
type RedditConfig struct {
	BaseURL     string        // defaults to https://www.reddit.com
	UserAgent   string
	Concurrency int64         // simultaneous "more children" requests (default 3)
	MaxRetry    int           // backoff attempts per chunk (default 5)
	ChunkDelay  time.Duration // delay between chunk launches (default 500ms)
	Timeout     time.Duration
}

// DefaultRedditConfig returns sensible defaults.
func DefaultRedditConfig() RedditConfig {
	return RedditConfig{
		BaseURL:     "https://www.reddit.com",
		UserAgent:   desktopUserAgent,
		Concurrency: 3,
		MaxRetry:    5,
		ChunkDelay:  500 * time.Millisecond,
		Timeout:     30 * time.Second,
	}
}

// moreChunkSize is the id batch size accepted by the morechildren API.
const moreChunkSize = 100

// Reddit extracts post and comment text through reddit's JSON API.
type Reddit struct {
	cfg    RedditConfig
	client *http.Client

	sem *semaphore.Weighted

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReddit creates a reddit extractor.
func NewReddit(cfg RedditConfig) *Reddit {
	def := DefaultRedditConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxRetry == 0 {
		cfg.MaxRetry = def.MaxRetry
	}
	if cfg.ChunkDelay == 0 {
		cfg.ChunkDelay = def.ChunkDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Reddit{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sem:    semaphore.NewWeighted(cfg.Concurrency),
		sleep:  sleepCtx,
	}
}

type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Over18      bool    `json:"over_18"`
	SelfText    string  `json:"selftext"`
	Name        string  `json:"name"` // t3_<id>, the thread link_id
	URL         string  `json:"url"`
}

type redditComment struct {
	Author  string          `json:"author"`
	Body    string          `json:"body"`
	Score   int             `json:"score"`
	Replies json.RawMessage `json:"replies"` // empty string or a listing
}

type redditMore struct {
	Children []string `json:"children"`
}

// moreItem defers a batch of unexpanded comment ids at a tree depth.
type moreItem struct {
	ids   []string
	depth int
}

// NormalizeRedditURL canonicalizes a reddit URL for the JSON API:
// https scheme, .json suffix, and limit=1000 for comment threads.
func (r *Reddit) NormalizeRedditURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotParse, err)
	}

	path := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}

	out := r.cfg.BaseURL + path
	if isThreadPath(path) {
		out += "?limit=1000"
	}
	return out, nil
}

func isThreadPath(path string) bool {
	return strings.Contains(path, "/comments/")
}

// Extract fetches the URL through the JSON API and renders post,
// comments, and index listings as plain text.
func (r *Reddit) Extract(ctx context.Context, rawURL string) (string, error) {
	endpoint, err := r.NormalizeRedditURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrBadServerResponse, resp.StatusCode)
	}

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotDecode, err)
	}

	// A thread is a two-element array [post listing, comment listing];
	// an index is a single listing object.
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return r.renderThread(ctx, trimmed)
	}
	return r.renderIndex(trimmed)
}

func (r *Reddit) renderThread(ctx context.Context, payload []byte) (string, error) {
	var listings []redditListing
	if err := json.Unmarshal(payload, &listings); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotParse, err)
	}
	if len(listings) < 2 || len(listings[0].Data.Children) == 0 {
		return "", fmt.Errorf("%w: unexpected thread shape", ErrCannotParse)
	}

	var post redditPost
	if err := json.Unmarshal(listings[0].Data.Children[0].Data, &post); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotParse, err)
	}

	var sb strings.Builder
	sb.WriteString("Title: " + post.Title + "\n")
	sb.WriteString(fmt.Sprintf("Subreddit: r/%s | Author: u/%s | Score: %d | Comments: %d",
		post.Subreddit, post.Author, post.Score, post.NumComments))
	if post.Over18 {
		sb.WriteString(" | NSFW")
	}
	sb.WriteString("\n")
	sb.WriteString("Posted: " + time.Unix(int64(post.CreatedUTC), 0).UTC().Format(time.RFC3339) + "\n")
	if post.SelfText != "" {
		sb.WriteString("\n" + strings.TrimSpace(post.SelfText) + "\n")
	}

	var more []moreItem
	var comments strings.Builder
	walkComments(listings[1].Data.Children, 0, &comments, &more)

	expanded := r.expandMore(ctx, post.Name, more)

	if comments.Len() > 0 || expanded != "" {
		sb.WriteString("\nComments:\n")
		sb.WriteString(comments.String())
		sb.WriteString(expanded)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// walkComments renders t1 comments depth-first and defers "more" items
// to the work queue.
func walkComments(things []redditThing, depth int, sb *strings.Builder, more *[]moreItem) {
	for _, thing := range things {
		switch thing.Kind {
		case "t1":
			var c redditComment
			if err := json.Unmarshal(thing.Data, &c); err != nil {
				continue
			}
			writeComment(sb, c, depth)
			if replies, ok := parseReplies(c.Replies); ok {
				walkComments(replies.Data.Children, depth+1, sb, more)
			}
		case "more":
			var m redditMore
			if err := json.Unmarshal(thing.Data, &m); err != nil {
				continue
			}
			if len(m.Children) > 0 {
				*more = append(*more, moreItem{ids: m.Children, depth: depth})
			}
		}
	}
}

func writeComment(sb *strings.Builder, c redditComment, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(fmt.Sprintf("%s: %s [%d]\n", c.Author, CollapseWhitespace(c.Body), c.Score))
}

// parseReplies decodes the replies field, which is either an empty
// string or a nested listing.
func parseReplies(raw json.RawMessage) (redditListing, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return redditListing{}, false
	}
	var listing redditListing
	if err := json.Unmarshal(trimmed, &listing); err != nil {
		return redditListing{}, false
	}
	return listing, len(listing.Data.Children) > 0
}

// expandMore fetches deferred comment batches through the morechildren
// endpoint. Chunk failures abandon that subtree only.
func (r *Reddit) expandMore(ctx context.Context, linkID string, items []moreItem) string {
	var chunks []moreItem
	for _, item := range items {
		ids := item.ids
		for len(ids) > 0 {
			n := min(len(ids), moreChunkSize)
			chunks = append(chunks, moreItem{ids: ids[:n], depth: item.depth})
			ids = ids[n:]
		}
	}
	if len(chunks) == 0 {
		return ""
	}

	results := make([]string, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		if i > 0 {
			if err := r.sleep(ctx, r.cfg.ChunkDelay); err != nil {
				break
			}
		}
		if err := r.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, chunk moreItem) {
			defer wg.Done()
			defer r.sem.Release(1)
			text, err := r.fetchMoreChunk(ctx, linkID, chunk)
			if err != nil {
				logger.Warn("more children chunk abandoned",
					"link_id", linkID, "ids", len(chunk.ids), "error", err)
				return
			}
			results[i] = text
		}(i, chunk)
	}
	wg.Wait()

	return strings.Join(results, "")
}

// fetchMoreChunk posts one id batch, retrying once after 1s on 429 and
// with exponential backoff on other failures.
func (r *Reddit) fetchMoreChunk(ctx context.Context, linkID string, chunk moreItem) (string, error) {
	var lastErr error
	retried429 := false

	for attempt := 0; attempt < r.cfg.MaxRetry; attempt++ {
		text, status, err := r.postMoreChildren(ctx, linkID, chunk)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if status == http.StatusTooManyRequests {
			if retried429 {
				return "", lastErr
			}
			retried429 = true
			if err := r.sleep(ctx, time.Second); err != nil {
				return "", err
			}
			continue
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		if err := r.sleep(ctx, backoff); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (r *Reddit) postMoreChildren(ctx context.Context, linkID string, chunk moreItem) (string, int, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("link_id", linkID)
	form.Set("children", strings.Join(chunk.ids, ","))
	form.Set("sort", "confidence")
	form.Set("limit_children", "false")
	form.Set("depth", fmt.Sprintf("%d", chunk.depth))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.cfg.BaseURL+"/api/morechildren.json", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("morechildren request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, fmt.Errorf("%w: status %d", ErrBadServerResponse, resp.StatusCode)
	}

	var payload struct {
		JSON struct {
			Data struct {
				Things []redditThing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", resp.StatusCode, fmt.Errorf("%w: %v", ErrCannotParse, err)
	}

	var sb strings.Builder
	var nested []moreItem // nested "more" placeholders are not re-fetched
	walkComments(payload.JSON.Data.Things, chunk.depth, &sb, &nested)
	return sb.String(), resp.StatusCode, nil
}

func (r *Reddit) renderIndex(payload []byte) (string, error) {
	var listing redditListing
	if err := json.Unmarshal(payload, &listing); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotParse, err)
	}

	var sb strings.Builder
	for _, thing := range listing.Data.Children {
		if thing.Kind != "t3" {
			continue
		}
		var post redditPost
		if err := json.Unmarshal(thing.Data, &post); err != nil {
			continue
		}
		sb.WriteString("Title: " + post.Title + "\n")
		sb.WriteString(fmt.Sprintf("Author: u/%s | Score: %d | Comments: %d\n",
			post.Author, post.Score, post.NumComments))
		sb.WriteString("URL: " + post.URL + "\n\n")
	}

	out := strings.TrimRight(sb.String(), "\n")
	if out == "" {
		return "", fmt.Errorf("%w: empty listing", ErrCannotParse)
	}
	return out, nil
}
