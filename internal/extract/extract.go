// Package extract converts URLs into clean body text via
// interchangeable, domain-aware extractors.
package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors shared by all extractors.
var (
	ErrBadServerResponse = errors.New("extract: bad server response")
	ErrCannotDecode      = errors.New("extract: cannot decode raw data")
	ErrCannotParse       = errors.New("extract: cannot parse response")
)

// Extractor converts a URL into clean text content.
type Extractor interface {
	// Extract fetches the URL and returns readable text.
	Extract(ctx context.Context, url string) (string, error)
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripTags removes HTML tags with a regex and collapses whitespace.
// Last-resort fallback when structural extraction finds nothing.
func StripTags(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	return CollapseWhitespace(text)
}

// CollapseWhitespace reduces whitespace runs to single spaces and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
