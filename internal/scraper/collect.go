package scraper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

// dayPager is the slice of the scraper the walk drives, split out so the
// skip/halt policy can be exercised without a browser
type dayPager interface {
	Extract(ctx context.Context) (models.DaySnapshot, error)
	PreviousDay(ctx context.Context) (bool, error)
}

// CollectDays walks the dashboard backward one day at a time, extracting
// the table for each. Setup must have run first. When startDate is set
// the walk begins there, falling back to the currently displayed date if
// the calendar does not cooperate.
func (s *Scraper) CollectDays(ctx context.Context, days int, startDate time.Time) []models.DaySnapshot {
	if !startDate.IsZero() {
		ok, err := s.NavigateToDate(ctx, startDate)
		if err != nil || !ok {
			log.Warn().Err(err).Str("date", startDate.Format("2006-01-02")).
				Msg("could not navigate to start date, starting from current date")
		}
	}

	return collectDays(ctx, s, days, func(day int, err error) {
		log.Error().Err(err).Int("day", day).Msg("error scraping day")
	})
}

// collectDays runs the walk over any pager. A day that fails to extract
// is skipped and the walk still tries to step back for the next one; a
// step that reports no movement or errors ends the walk, keeping what
// was collected so far.
func collectDays(ctx context.Context, pager dayPager, days int, onError func(day int, err error)) []models.DaySnapshot {
	var snapshots []models.DaySnapshot

	for i := 0; i < days; i++ {
		log.Info().Int("day", i+1).Int("of", days).Msg("scraping day")

		snap, err := pager.Extract(ctx)
		if err != nil {
			if onError != nil {
				onError(i+1, err)
			}
		} else {
			snapshots = append(snapshots, snap)
		}

		if i == days-1 {
			break
		}

		moved, err := pager.PreviousDay(ctx)
		if err != nil {
			log.Error().Err(err).Msg("could not navigate to previous day, stopping")
			break
		}
		if !moved {
			log.Error().Msg("could not navigate to previous day, stopping")
			break
		}
	}

	return snapshots
}
