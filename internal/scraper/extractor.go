package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

const dataTableSelector = `table.table--striped`

// Column headers as the dashboard renders them
const (
	colHour        = "Timme"
	colForecast    = "Prognos (MW)"
	colConsumption = "Förbrukning (MW)"
)

// Extract pulls the hourly table for the currently displayed day. The
// returned snapshot carries the date string read from the page; when
// that read fails the wall-clock date is used and the snapshot is
// flagged as clock-sourced, since the rows may then be mislabeled.
func (s *Scraper) Extract(ctx context.Context) (models.DaySnapshot, error) {
	if err := s.waitVisible(ctx, dataTableSelector); err != nil {
		s.saveErrorScreenshot()
		return models.DaySnapshot{}, &ExtractionError{Reason: ReasonNoTable, Message: "data table never appeared"}
	}

	// Allow table to fully render
	if err := s.settle(ctx); err != nil {
		return models.DaySnapshot{}, fmt.Errorf("waiting for table render: %w", err)
	}

	dateStr := s.displayedDate(ctx)
	source := models.DateSourcePage
	if dateStr == "" {
		dateStr = time.Now().Format("2006-01-02")
		source = models.DateSourceClock
		log.Warn().Str("date", dateStr).Msg("could not extract date, using today's date")
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML(dataTableSelector, &html, chromedp.ByQuery)); err != nil {
		s.saveErrorScreenshot()
		return models.DaySnapshot{}, fmt.Errorf("capturing table HTML: %w", err)
	}

	snap, err := parseDayTable(html, dateStr, source)
	if err != nil {
		s.saveErrorScreenshot()
		return models.DaySnapshot{}, err
	}

	log.Info().Str("date", dateStr).Int("rows", len(snap.Records)).Msg("extracted table")
	return snap, nil
}

// InspectState captures what the extractor would see: the value of the
// date control and the rendered table markup. Meant for debugging the
// selectors when the site's markup shifts.
func (s *Scraper) InspectState(ctx context.Context) (string, string, error) {
	dateStr := s.displayedDate(ctx)

	if err := s.waitVisible(ctx, dataTableSelector); err != nil {
		return dateStr, "", &ExtractionError{Reason: ReasonNoTable, Message: "data table never appeared"}
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML(dataTableSelector, &html, chromedp.ByQuery)); err != nil {
		return dateStr, "", fmt.Errorf("capturing table HTML: %w", err)
	}
	return dateStr, html, nil
}

// parseDayTable converts the captured table HTML into a snapshot. Kept
// free of browser state so the parse rules can be exercised directly.
func parseDayTable(html, dateStr, source string) (models.DaySnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.DaySnapshot{}, fmt.Errorf("parsing table HTML: %w", err)
	}

	var headers []string
	doc.Find("tr").First().Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	if len(headers) == 0 {
		return models.DaySnapshot{}, &ExtractionError{Reason: ReasonNoHeaders, Message: "no headers found in table"}
	}

	// Find column indices
	hourCol, forecastCol, consumptionCol := -1, -1, -1
	for i, h := range headers {
		switch h {
		case colHour:
			hourCol = i
		case colForecast:
			forecastCol = i
		case colConsumption:
			consumptionCol = i
		}
	}

	date := parseDisplayedDate(dateStr)
	rawDate := ""
	if date.IsZero() {
		// Keep the displayed text so the day still has an identity
		rawDate = strings.TrimSpace(dateStr)
	}

	snap := models.DaySnapshot{Date: dateStr, Source: source}
	doc.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}

		values := make([]string, 0, cells.Length())
		empty := true
		cells.Each(func(_ int, td *goquery.Selection) {
			v := normalizeCell(td.Text())
			if v != "" {
				empty = false
			}
			values = append(values, v)
		})
		if empty {
			return
		}

		rec := models.PowerRecord{Date: date, RawDate: rawDate, DateSource: source}
		if hourCol >= 0 && hourCol < len(values) {
			rec.Hour = values[hourCol]
		}
		if forecastCol >= 0 && forecastCol < len(values) {
			rec.ForecastMW = parseMW(values[forecastCol])
		}
		if consumptionCol >= 0 && consumptionCol < len(values) {
			rec.ConsumptionMW = parseMW(values[consumptionCol])
		}
		if h, ok := hourStart(rec.Hour); ok && !date.IsZero() {
			rec.Timestamp = time.Date(date.Year(), date.Month(), date.Day(), h, 0, 0, 0, time.UTC)
		}

		snap.Records = append(snap.Records, rec)
	})

	if len(snap.Records) == 0 {
		return models.DaySnapshot{}, &ExtractionError{Reason: ReasonNoRows, Message: "no data rows found in table"}
	}
	return snap, nil
}

// parseDisplayedDate parses the date control's value. The dashboard
// renders ISO dates, but a couple of variants are tried in case the
// markup shifts. Zero time means unparseable.
func parseDisplayedDate(s string) time.Time {
	s = strings.TrimSpace(s)

	formats := []string{
		"2006-01-02",
		"2006-1-2",
		"2006-01-02 15:04",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// normalizeCell cleans one table cell: non-breaking and regular spaces
// go away (the site groups thousands with them), thousands periods are
// stripped, and the Swedish decimal comma becomes a dot
func normalizeCell(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strings.TrimSpace(s)
}

// parseMW converts a normalized cell to megawatts. The dashboard shows
// "-" for hours that have no value yet.
func parseMW(s string) *float64 {
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// hourStart parses the leading hour out of a label like "08-09"
func hourStart(label string) (int, bool) {
	head, _, _ := strings.Cut(label, "-")
	head = strings.TrimSpace(head)
	if head == "" {
		return 0, false
	}
	h, err := strconv.Atoi(head)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
