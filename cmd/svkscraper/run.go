package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RosenErik/svk-scraper/internal/browser"
	"github.com/RosenErik/svk-scraper/internal/config"
	"github.com/RosenErik/svk-scraper/internal/dataset"
	"github.com/RosenErik/svk-scraper/internal/scraper"
	"github.com/RosenErik/svk-scraper/pkg/models"
)

var (
	runDays      int
	runStartDate string
	runVisible   bool
	runPublish   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape power data and update the historical dataset",
	Long: `Walks the Kontrollrummet dashboard backward one day at a time, extracts
the hourly forecast and consumption table for the Stockholm (SE3) area,
merges the results into the master dataset and rewrites the summary report.

When the master dataset is missing or stale the day count is widened
automatically to backfill the gap.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runDays, "days", 0, "Number of days to scrape (default from config: 3)")
	runCmd.Flags().StringVar(&runStartDate, "start-date", "", "Start date in YYYY-MM-DD format (default: today)")
	runCmd.Flags().BoolVar(&runVisible, "visible", false, "Show browser window (for debugging)")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "Publish new records over MQTT after a successful run")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Run started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	runID := uuid.NewString()
	log.Logger = log.With().Str("run_id", runID[:8]).Logger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var startDate time.Time
	if runStartDate != "" {
		startDate, err = time.Parse("2006-01-02", runStartDate)
		if err != nil {
			return fmt.Errorf("parsing --start-date: %w", err)
		}
	}

	days := runDays
	if days <= 0 {
		days = cfg.GetDaysToFetch()
	}

	dir := getDataDir(cfg)
	masterPath := dataset.MasterPath(dir)

	existing, err := dataset.Load(masterPath)
	if err != nil {
		return fmt.Errorf("loading existing data: %w", err)
	}
	if len(existing.Records) > 0 {
		log.Info().Int("records", len(existing.Records)).Str("path", masterPath).Msg("loaded existing dataset")
	} else {
		log.Info().Msg("no existing dataset found, starting fresh")
	}

	effective := dataset.EffectiveDays(existing, days, time.Now())
	if effective != days {
		log.Info().Int("requested", days).Int("effective", effective).Msg("widened day count to backfill missing data")
	}

	startedAt := time.Now()

	snapshots, err := scrape(cfg, dir, effective, startDate)
	if err != nil {
		return err
	}

	fresh := dataset.FromSnapshots(snapshots)
	if len(fresh.Records) == 0 {
		log.Warn().Msg("no data was scraped")
		fmt.Println("⚠ No data collected")
		return nil
	}
	log.Info().Int("records", len(fresh.Records)).Int("days", len(snapshots)).Msg("scrape complete")

	merged := dataset.Merge(existing, fresh)

	rawPath := dataset.RawPath(dir, startedAt)
	if err := dataset.Save(rawPath, fresh); err != nil {
		return fmt.Errorf("saving raw snapshot: %w", err)
	}
	if err := dataset.Save(masterPath, merged); err != nil {
		return fmt.Errorf("saving master dataset: %w", err)
	}

	summary := dataset.Summarize(merged, time.Now())
	if err := dataset.WriteSummary(dataset.SummaryPath(dir), summary); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	newRecords := len(merged.Records) - len(existing.Records)
	if newRecords > 0 {
		fmt.Printf("✓ Added %d new records to dataset\n", newRecords)
	} else {
		fmt.Println("No new unique records added (all were duplicates)")
	}
	fmt.Printf("Total records in dataset: %s\n", humanize.Comma(int64(len(merged.Records))))

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	changed := 0
	for i := range fresh.Records {
		wrote, err := db.Upsert(&fresh.Records[i])
		if err != nil {
			return fmt.Errorf("storing records: %w", err)
		}
		if wrote {
			changed++
		}
	}
	log.Info().Int("changed", changed).Msg("database updated")

	if runPublish {
		records, err := db.ListUnpublished()
		if err != nil {
			return fmt.Errorf("listing unpublished records: %w", err)
		}
		if len(records) > 0 {
			fmt.Printf("Publishing %d records...\n", len(records))
			published, err := publishRecords(cfg, db, records)
			if err != nil {
				// Data is already on disk, a broker outage should not
				// fail the run. Unpublished rows stay flagged for retry.
				log.Error().Err(err).Msg("publishing failed")
				fmt.Printf("⚠ Publishing failed: %v\n", err)
			} else {
				fmt.Printf("Successfully published %d/%d records\n", published, len(records))
			}
		}
	}

	fmt.Println("✓ Run completed successfully")
	return nil
}

// scrape drives a browser session through setup and day-by-day collection.
func scrape(cfg *config.Config, dir string, days int, startDate time.Time) ([]models.DaySnapshot, error) {
	sess, err := browser.New(context.Background(), !runVisible)
	if err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	defer sess.Close()

	// Carrying the consent cookies over skips the banner on revisits
	cookiePath := filepath.Join(dir, "state", "cookies.json")
	if err := sess.RestoreCookies(cookiePath); err != nil {
		log.Debug().Err(err).Msg("could not restore cookies")
	}

	sc := scraper.New(sess, cfg)
	ctx := sess.Ctx()

	if err := sc.Open(ctx); err != nil {
		return nil, fmt.Errorf("opening dashboard: %w", err)
	}
	if err := sc.Setup(ctx); err != nil {
		return nil, fmt.Errorf("setting up page: %w", err)
	}

	snapshots := sc.CollectDays(ctx, days, startDate)

	if err := sess.SaveCookies(cookiePath); err != nil {
		log.Debug().Err(err).Msg("could not save cookies")
	}

	return snapshots, nil
}
