package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/delver/internal/logger"
)

// minContentLength is the threshold below which a container's text is
// not considered the page's main content.
const minContentLength = 100

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// WebConfig holds settings for the generic web extractor.
type WebConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// DefaultWebConfig returns sensible defaults.
func DefaultWebConfig() WebConfig {
	return WebConfig{
		UserAgent: desktopUserAgent,
		Timeout:   30 * time.Second,
	}
}

// Web is the generic HTML extractor. It prefers article, then main,
// then body, falling back to a regex tag stripper.
type Web struct {
	cfg WebConfig
}

// NewWeb creates a generic web extractor.
func NewWeb(cfg WebConfig) *Web {
	def := DefaultWebConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Web{cfg: cfg}
}

// Extract fetches the URL and returns its main textual content.
func (w *Web) Extract(ctx context.Context, url string) (string, error) {
	c := colly.NewCollector(colly.UserAgent(w.cfg.UserAgent))
	c.SetRequestTimeout(w.cfg.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html")
	})

	var (
		body     []byte
		status   int
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: status %d", ErrBadServerResponse, status)
	}
	if !utf8.Valid(body) {
		return "", ErrCannotDecode
	}

	text, err := extractText(string(body))
	if err != nil {
		return "", err
	}
	logger.Debug("web extraction complete", "url", url, "bytes", len(text))
	return text, nil
}

// extractText pulls the main content out of an HTML payload.
func extractText(html string) (string, error) {
	// goquery wraps fragments in a full document either way; the tag
	// check only decides whether we trust document structure at all.
	isDocument := strings.Contains(strings.ToLower(html), "<html")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotParse, err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	for _, container := range []string{"article", "main", "body"} {
		text := CollapseWhitespace(doc.Find(container).First().Text())
		if len(text) > minContentLength {
			return text, nil
		}
	}

	if !isDocument {
		// Fragment with no usable containers: treat the whole payload
		// as content.
		if text := CollapseWhitespace(doc.Text()); len(text) > minContentLength {
			return text, nil
		}
	}

	return StripTags(html), nil
}
