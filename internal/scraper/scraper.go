package scraper

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/RosenErik/svk-scraper/internal/browser"
	"github.com/RosenErik/svk-scraper/internal/config"
)

// Scraper drives the Kontrollrummet dashboard through a browser session.
// It holds no state between calls beyond the session itself, so the same
// instance can set up the page once and then extract any number of days.
type Scraper struct {
	session *browser.Session
	cfg     *config.Config
}

// New creates a scraper bound to an open browser session
func New(session *browser.Session, cfg *config.Config) *Scraper {
	return &Scraper{
		session: session,
		cfg:     cfg,
	}
}

// Open loads the dashboard and waits out the initial render
func (s *Scraper) Open(ctx context.Context) error {
	if err := chromedp.Run(ctx,
		chromedp.Navigate(s.cfg.GetBaseURL()),
		chromedp.Sleep(3*time.Second), // Initial load time
	); err != nil {
		return fmt.Errorf("loading dashboard: %w", err)
	}
	return nil
}

// waitVisible waits for sel within the configured per-element bound
func (s *Scraper) waitVisible(ctx context.Context, sel string) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.GetWaitTimeout())
	defer cancel()

	return chromedp.Run(wctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// settle pauses for the configured render delay
func (s *Scraper) settle(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.Sleep(s.cfg.GetSettleDelay()))
}

// saveErrorScreenshot captures the page when running in GitHub Actions,
// where there is no other way to see what the dashboard looked like
func (s *Scraper) saveErrorScreenshot() {
	if os.Getenv("GITHUB_ACTIONS") == "" {
		return
	}

	if err := s.session.Screenshot("error_screenshot.png"); err != nil {
		log.Warn().Err(err).Msg("could not capture error screenshot")
		return
	}
	log.Info().Str("path", "error_screenshot.png").Msg("saved error screenshot")
}
