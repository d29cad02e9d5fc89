package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/delver/internal/logger"
	"github.com/jmylchreest/delver/internal/ratelimit"
)

// SearxNGConfig holds settings for the JSON-API provider.
type SearxNGConfig struct {
	BaseURL    string        // SearxNG instance, e.g. http://localhost:8888
	PageSize   int           // results per page (default 10)
	MaxPages   int           // pages to request (default 6)
	MaxResults int           // stop once this many unique results gathered (default 60)
	PageDelay  time.Duration // delay between pages (default 500ms)
	RPM        int           // rate limit (default 60)
	Timeout    time.Duration
}

// DefaultSearxNGConfig returns sensible defaults.
func DefaultSearxNGConfig() SearxNGConfig {
	return SearxNGConfig{
		PageSize:   10,
		MaxPages:   6,
		MaxResults: 60,
		PageDelay:  500 * time.Millisecond,
		RPM:        60,
		Timeout:    30 * time.Second,
	}
}

// SearxNG queries a SearxNG instance's JSON API with pagination.
type SearxNG struct {
	cfg     SearxNGConfig
	client  *http.Client
	limiter *ratelimit.Limiter

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSearxNG creates a JSON-API search provider.
func NewSearxNG(cfg SearxNGConfig) *SearxNG {
	def := DefaultSearxNGConfig()
	if cfg.PageSize == 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = def.PageDelay
	}
	if cfg.RPM == 0 {
		cfg.RPM = def.RPM
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &SearxNG{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RPM),
		sleep:   sleepCtx,
	}
}

type searxngResponse struct {
	Results []searxngResult `json:"results"`
}

type searxngResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Search requests pages sequentially, stopping early when a page comes
// back empty or enough unique results have accumulated.
func (s *SearxNG) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	seen := make(map[string]bool)
	var all []Result

	for page := 1; page <= s.cfg.MaxPages; page++ {
		if page > 1 {
			if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
				return nil, err
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		results, err := s.fetchPage(ctx, query, page)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			break
		}

		for _, r := range results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			all = append(all, r)
		}
		logger.Debug("searxng page fetched", "page", page, "total", len(all))

		if len(all) >= s.cfg.MaxResults {
			all = all[:s.cfg.MaxResults]
			break
		}
	}

	if len(all) == 0 {
		return nil, ErrNoResults
	}
	return all, nil
}

func (s *SearxNG) fetchPage(ctx context.Context, query string, page int) ([]Result, error) {
	u, err := url.Parse(s.cfg.BaseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	var data searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	results := make([]Result, 0, len(data.Results))
	for _, r := range data.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, Result{
			Title:   r.Title,
			URL:     NormalizeURL(r.URL),
			Snippet: r.Content,
		})
	}
	if len(results) > s.cfg.PageSize {
		results = results[:s.cfg.PageSize]
	}
	return results, nil
}
