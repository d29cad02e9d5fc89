package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/delver/internal/logger"
)

// variationSuffixes broaden the raw query into related searches.
var variationSuffixes = []string{"overview", "explained", "guide", "tutorial"}

// DuckDuckGoConfig holds settings for the HTML-scraping provider.
type DuckDuckGoConfig struct {
	BaseURL       string        // defaults to the html.duckduckgo.com endpoint
	UserAgent     string
	MaxVariations int           // raw query plus suffixed variations (default 5)
	QueryDelay    time.Duration // delay between variations (default 1s)
	Timeout       time.Duration
}

// DefaultDuckDuckGoConfig returns sensible defaults.
func DefaultDuckDuckGoConfig() DuckDuckGoConfig {
	return DuckDuckGoConfig{
		BaseURL:       "https://html.duckduckgo.com/html/",
		UserAgent:     desktopUserAgent,
		MaxVariations: 5,
		QueryDelay:    time.Second,
		Timeout:       30 * time.Second,
	}
}

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DuckDuckGo scrapes the search engine's HTML results page.
type DuckDuckGo struct {
	cfg    DuckDuckGoConfig
	client *http.Client

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDuckDuckGo creates an HTML-scraping search provider.
func NewDuckDuckGo(cfg DuckDuckGoConfig) *DuckDuckGo {
	def := DefaultDuckDuckGoConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxVariations == 0 {
		cfg.MaxVariations = def.MaxVariations
	}
	if cfg.QueryDelay == 0 {
		cfg.QueryDelay = def.QueryDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &DuckDuckGo{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sleep:  sleepCtx,
	}
}

// Search issues the raw query plus topic-broadening variations,
// sequentially with an inter-query delay, and unions the results.
// Errors on individual variations are logged and swallowed.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	variations := queryVariations(query, d.cfg.MaxVariations)

	var all []Result
	for i, v := range variations {
		if i > 0 {
			if err := d.sleep(ctx, d.cfg.QueryDelay); err != nil {
				return nil, err
			}
		}
		results, err := d.searchOne(ctx, v)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("duckduckgo variation failed", "query", v, "error", err)
			continue
		}
		all = append(all, results...)
	}

	all = Dedupe(all)
	if len(all) == 0 {
		return nil, ErrNoResults
	}
	return all, nil
}

func (d *DuckDuckGo) searchOne(ctx context.Context, query string) ([]Result, error) {
	endpoint := d.cfg.BaseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var results []Result
	doc.Find("div.result").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if !ok || title == "" {
			return
		}
		snippet := strings.TrimSpace(s.Find("a.result__snippet").First().Text())
		results = append(results, Result{
			Title:   title,
			URL:     NormalizeURL(href),
			Snippet: snippet,
		})
	})
	return results, nil
}

// queryVariations returns the raw query followed by suffixed variants,
// capped at max entries.
func queryVariations(query string, max int) []string {
	variations := []string{query}
	for _, suffix := range variationSuffixes {
		if len(variations) >= max {
			break
		}
		variations = append(variations, query+" "+suffix)
	}
	return variations
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
