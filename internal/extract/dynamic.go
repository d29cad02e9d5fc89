package extract

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/delver/internal/logger"
)

// Dynamic renders pages in a headless browser before extraction. Used
// for hosts whose content only exists after JavaScript runs.
type Dynamic struct {
	cfg       WebConfig
	allocCtx  context.Context
	cancelCtx context.CancelFunc
}

// NewDynamic creates a dynamic extractor with a browser allocator.
func NewDynamic(cfg WebConfig) (*Dynamic, error) {
	def := DefaultWebConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Dynamic{
		cfg:       cfg,
		allocCtx:  allocCtx,
		cancelCtx: cancel,
	}, nil
}

// Extract renders the URL and returns its main textual content.
func (d *Dynamic) Extract(ctx context.Context, url string) (string, error) {
	browserCtx, cancelBrowser := chromedp.NewContext(d.allocCtx)
	defer cancelBrowser()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, d.cfg.Timeout)
	defer cancelTimeout()

	// Tie browser lifetime to the caller's context.
	go func() {
		select {
		case <-ctx.Done():
			cancelTimeout()
		case <-timeoutCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("dynamic fetch %s: %w", url, err)
	}

	text, err := extractText(html)
	if err != nil {
		return "", err
	}
	logger.Debug("dynamic extraction complete", "url", url, "bytes", len(text))
	return text, nil
}

// Close shuts down the browser allocator.
func (d *Dynamic) Close() error {
	d.cancelCtx()
	return nil
}
