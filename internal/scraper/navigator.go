package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// Setup accepts the cookie banner, selects the configured electricity-area
// tab and switches the dashboard to table view. Safe to call on a page
// that is already set up.
func (s *Scraper) Setup(ctx context.Context) error {
	s.acceptCookies(ctx)

	if err := s.selectRegionTab(ctx); err != nil {
		return err
	}

	s.selectTableView(ctx)
	return nil
}

// acceptCookies clicks the consent banner if one is shown. Absence is
// normal on revisits, so failure only logs at debug.
func (s *Scraper) acceptCookies(ctx context.Context) {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.GetWaitTimeout())
	defer cancel()

	err := chromedp.Run(wctx,
		chromedp.WaitVisible(`.cookie-accept-all`, chromedp.ByQuery),
		chromedp.Click(`.cookie-accept-all`, chromedp.ByQuery),
		chromedp.Sleep(1*time.Second),
	)
	if err != nil {
		log.Debug().Err(err).Msg("cookie banner not found or already accepted")
		return
	}
	log.Info().Msg("cookies accepted")
}

// selectRegionTab clicks the area tab carrying the configured label.
// The tabs are plain buttons distinguished only by text, so the match
// happens in the page.
func (s *Scraper) selectRegionTab(ctx context.Context) error {
	label := s.cfg.GetRegionTab()

	// Let the tab strip render
	if err := s.settle(ctx); err != nil {
		return fmt.Errorf("waiting for tabs: %w", err)
	}
	if err := s.waitVisible(ctx, `button.custom-trigger`); err != nil {
		return fmt.Errorf("region tabs never appeared: %w", err)
	}

	script := fmt.Sprintf(`
		(function() {
			const buttons = document.querySelectorAll('button.custom-trigger');
			for (let btn of buttons) {
				if (btn.textContent.includes(%q)) {
					btn.scrollIntoView(true);
					btn.click();
					return true;
				}
			}
			return false;
		})()
	`, label)

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("searching for region tab: %w", err)
	}
	if !clicked {
		return fmt.Errorf("region tab %q not found", label)
	}

	if err := s.settle(ctx); err != nil {
		return fmt.Errorf("waiting after tab click: %w", err)
	}

	log.Info().Str("tab", label).Msg("region tab selected")
	return nil
}

// selectTableView switches the consumption widget from chart to table.
// A button with aria-selected="true" means the table is already showing,
// which is fine.
func (s *Scraper) selectTableView(ctx context.Context) {
	if err := s.settle(ctx); err != nil {
		log.Warn().Err(err).Msg("error selecting table view")
		return
	}

	const script = `
		(function() {
			const buttons = document.querySelectorAll('button');
			for (let btn of buttons) {
				if (btn.textContent.includes('Tabell') && btn.getAttribute('aria-selected') === 'false') {
					btn.scrollIntoView(true);
					btn.click();
					return true;
				}
			}
			return false;
		})()
	`

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		log.Warn().Err(err).Msg("error selecting table view")
		return
	}

	if !clicked {
		log.Info().Msg("table view might already be selected")
		return
	}

	if err := s.settle(ctx); err != nil {
		log.Warn().Err(err).Msg("waiting after table view click")
		return
	}
	log.Info().Msg("table view selected")
}

// displayedDate reads the date shown by the dashboard's date control.
// Known input IDs are tried first, then any readonly text input whose
// value looks like a date. Empty string means none matched.
func (s *Scraper) displayedDate(ctx context.Context) string {
	const script = `
		(function() {
			const ids = ['Agsid-15', 'Agsid-8', 'Agsid-1'];
			for (const id of ids) {
				const input = document.getElementById(id);
				if (input && input.value) {
					return input.value;
				}
			}
			const inputs = document.querySelectorAll("input[type='text'][readonly]");
			for (let input of inputs) {
				if (input.value && input.value.includes('-')) {
					return input.value;
				}
			}
			return '';
		})()
	`

	var value string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &value)); err != nil {
		log.Error().Err(err).Msg("reading displayed date")
		return ""
	}
	return strings.TrimSpace(value)
}

// NavigateToDate drives the calendar picker to target and reports whether
// the dashboard ended up showing it. false with a nil error means some
// step of the picker did not cooperate; the caller can still scrape from
// whatever date is displayed.
func (s *Scraper) NavigateToDate(ctx context.Context, target time.Time) (bool, error) {
	targetStr := target.Format("2006-01-02")
	log.Info().Str("date", targetStr).Msg("navigating to date")

	opened, err := s.openCalendar(ctx)
	if err != nil {
		return false, err
	}
	if !opened {
		log.Error().Msg("could not open calendar picker")
		return false, nil
	}

	if err := chromedp.Run(ctx, chromedp.Sleep(1*time.Second)); err != nil {
		return false, fmt.Errorf("waiting for calendar: %w", err)
	}

	if err := s.alignYear(ctx, target.Year()); err != nil {
		log.Warn().Err(err).Msg("could not navigate year")
	}
	if err := s.alignMonth(ctx, int(target.Month())); err != nil {
		log.Warn().Err(err).Msg("could not navigate month")
	}

	s.clickDay(ctx, targetStr)
	s.confirmDate(ctx)

	if err := chromedp.Run(ctx, chromedp.Sleep(3*time.Second)); err != nil {
		return false, fmt.Errorf("waiting after date selection: %w", err)
	}

	got := s.displayedDate(ctx)
	if got == targetStr {
		log.Info().Str("date", targetStr).Msg("navigated to date")
		return true, nil
	}
	log.Warn().Str("expected", targetStr).Str("got", got).Msg("date navigation may have failed")
	return false, nil
}

// openCalendar tries the calendar icon first, then the date input itself
func (s *Scraper) openCalendar(ctx context.Context) (bool, error) {
	const script = `
		(function() {
			const icon = document.querySelector('.date-time-picker .bi-calendar2-date');
			if (icon) {
				icon.click();
				return true;
			}
			const input = document.querySelector('.date-time-picker input[readonly]');
			if (input) {
				input.click();
				return true;
			}
			return false;
		})()
	`

	var opened bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &opened)); err != nil {
		return false, fmt.Errorf("opening calendar: %w", err)
	}
	return opened, nil
}

// alignYear steps the calendar's year selector until it shows target
func (s *Scraper) alignYear(ctx context.Context, target int) error {
	shown, err := s.selectorValue(ctx, `.year-select .current-val`)
	if err != nil {
		return err
	}

	var current int
	if _, err := fmt.Sscanf(shown, "%d", &current); err != nil {
		return fmt.Errorf("unexpected year %q: %w", shown, err)
	}

	steps := target - current
	selector := ".year-select button:last-child"
	if steps < 0 {
		selector = ".year-select button:first-child"
		steps = -steps
	}
	return s.clickStepper(ctx, selector, steps)
}

// alignMonth steps the calendar's month selector until it shows the
// target month (1-12). The selector renders month names, so the
// configured month table maps them to positions.
func (s *Scraper) alignMonth(ctx context.Context, target int) error {
	shown, err := s.selectorValue(ctx, `.month-select .current-val`)
	if err != nil {
		return err
	}

	current := monthIndex(s.cfg.GetMonths(), shown)
	if current < 0 {
		return fmt.Errorf("unrecognized month %q", shown)
	}

	steps := (target - 1) - current
	selector := ".month-select button:last-child"
	if steps < 0 {
		selector = ".month-select button:first-child"
		steps = -steps
	}
	return s.clickStepper(ctx, selector, steps)
}

// selectorValue returns the trimmed text content of the first element
// matching sel, or an error when nothing matches
func (s *Scraper) selectorValue(ctx context.Context, sel string) (string, error) {
	script := fmt.Sprintf(`
		(function() {
			const el = document.querySelector(%q);
			return el ? el.textContent.trim() : '';
		})()
	`, sel)

	var value string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", fmt.Errorf("reading %s: %w", sel, err)
	}
	if value == "" {
		return "", fmt.Errorf("no value at %s", sel)
	}
	return value, nil
}

// clickStepper clicks the stepper at sel count times, stopping early if
// the button disappears or disables (the calendar bounds its range)
func (s *Scraper) clickStepper(ctx context.Context, sel string, count int) error {
	script := fmt.Sprintf(`
		(function() {
			const btn = document.querySelector(%q);
			if (!btn || btn.disabled) {
				return false;
			}
			btn.click();
			return true;
		})()
	`, sel)

	for i := 0; i < count; i++ {
		var clicked bool
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(script, &clicked),
			chromedp.Sleep(300*time.Millisecond),
		); err != nil {
			return fmt.Errorf("clicking stepper %s: %w", sel, err)
		}
		if !clicked {
			log.Debug().Str("selector", sel).Int("remaining", count-i).Msg("stepper disabled, stopping")
			break
		}
	}
	return nil
}

// clickDay clicks the calendar cell for the given YYYY-MM-DD date
func (s *Scraper) clickDay(ctx context.Context, date string) {
	script := fmt.Sprintf(`
		(function() {
			const btn = document.querySelector("button[data-date='%s']");
			if (!btn || btn.disabled) {
				return false;
			}
			btn.click();
			return true;
		})()
	`, date)

	var clicked bool
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(script, &clicked),
		chromedp.Sleep(500*time.Millisecond),
	); err != nil || !clicked {
		log.Warn().Str("date", date).Msg("could not click specific day")
	}
}

// confirmDate commits the calendar selection. Newer page versions label
// the button Välj, older ones expose a data-action attribute.
func (s *Scraper) confirmDate(ctx context.Context) {
	const script = `
		(function() {
			const buttons = document.querySelectorAll('button');
			for (let btn of buttons) {
				if (btn.textContent.includes('Välj')) {
					btn.click();
					return true;
				}
			}
			const fallback = document.querySelector("button[data-action='setNewDate']");
			if (fallback) {
				fallback.click();
				return true;
			}
			return false;
		})()
	`

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil || !clicked {
		log.Warn().Msg("could not find confirm button")
	}
}

// PreviousDay steps the dashboard back one day and reports whether the
// displayed date actually changed. false with a nil error means the page
// offered no way further back, which ends a walk without failing it.
func (s *Scraper) PreviousDay(ctx context.Context) (bool, error) {
	before := s.displayedDate(ctx)

	const script = `
		(function() {
			const selectors = [
				".graphPowerConsumption .date-time-picker button.button-left",
				".date-time-picker button.button-left",
				"button[aria-label*='föregående dag']",
			];
			for (const selector of selectors) {
				const candidates = document.querySelectorAll(selector);
				for (let el of candidates) {
					if (el.offsetParent !== null && !el.disabled) {
						el.scrollIntoView(true);
						el.click();
						return true;
					}
				}
			}
			return false;
		})()
	`

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, fmt.Errorf("searching for previous-day button: %w", err)
	}

	if !clicked {
		// Native click as a fallback for pages where the scripted one
		// is swallowed by an overlay
		wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := chromedp.Run(wctx, chromedp.Click(`.date-time-picker button.button-left`, chromedp.ByQuery))
		cancel()
		if err != nil {
			log.Error().Msg("previous day button not found")
			return false, nil
		}
	}

	if err := chromedp.Run(ctx, chromedp.Sleep(3*time.Second)); err != nil {
		return false, fmt.Errorf("waiting after previous-day click: %w", err)
	}

	after := s.displayedDate(ctx)
	if after == before {
		log.Warn().Str("date", before).Msg("date did not change after clicking previous button")
		return false, nil
	}

	log.Info().Str("from", before).Str("to", after).Msg("navigated to previous day")
	return true, nil
}

// monthIndex returns the zero-based position of name in months, or -1
func monthIndex(months []string, name string) int {
	for i, m := range months {
		if strings.EqualFold(m, name) {
			return i
		}
	}
	return -1
}
