package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// Session owns one Chrome instance and the chromedp contexts attached to it.
// Callers create it at the top of a scrape, defer Close, and pass Ctx() to
// every page action, so the browser can never outlive the calling scope.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc // run in order on Close: browser, then allocator
}

// New launches Chrome. headless=false keeps the window visible for
// watching the scraper work.
func New(ctx context.Context, headless bool) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
	}

	// Launch failures (missing Chrome binary, sandbox restrictions)
	// surface here instead of on the first page action
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return s, nil
}

// Ctx returns the context all chromedp actions against this session use
func (s *Session) Ctx() context.Context {
	return s.ctx
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// Screenshot captures the current page to path, creating the directory
// if needed. Best effort diagnostic, bounded so a hung renderer can't
// stall shutdown.
func (s *Session) Screenshot(path string) error {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("writing screenshot: %w", err)
	}

	return nil
}
