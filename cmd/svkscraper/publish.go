package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RosenErik/svk-scraper/internal/config"
	"github.com/RosenErik/svk-scraper/internal/publisher"
	"github.com/RosenErik/svk-scraper/internal/store"
	"github.com/RosenErik/svk-scraper/pkg/models"
)

var (
	publishSince string
	publishUntil string
	publishAll   bool
	publishLimit int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish stored power records over MQTT",
	Long: `Reads power records from the database and publishes them to the
configured MQTT broker. By default only records that have not been
published yet (or changed since) are sent.`,
	RunE: runPublishCmd,
}

func init() {
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish records on or after this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "Only publish records on or before this date (YYYY-MM-DD or relative like 1d)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Publish all records, not just unpublished ones")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Maximum number of records to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublishCmd(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.MQTT.Enabled {
		return fmt.Errorf("MQTT publishing is not enabled in config")
	}

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var records []models.PowerRecord
	if publishAll {
		records, err = db.List(0)
	} else {
		records, err = db.ListUnpublished()
	}
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}

	records, err = filterByDate(records, publishSince, publishUntil)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		if publishAll {
			fmt.Println("No records found")
		} else {
			fmt.Println("No unpublished records found")
		}
		return nil
	}

	if publishLimit > 0 && len(records) > publishLimit {
		records = records[:publishLimit]
		fmt.Printf("Limiting to %d records (--limit flag)\n", publishLimit)
	}

	fmt.Printf("Publishing %d records...\n", len(records))
	published, err := publishRecords(cfg, db, records)
	if err != nil {
		return err
	}

	fmt.Printf("Successfully published %d/%d records\n", published, len(records))
	return nil
}

// publishRecords sends each record to the broker and marks it published.
// A failed record is reported and skipped, the rest keep going.
func publishRecords(cfg *config.Config, db *store.Store, records []models.PowerRecord) (int, error) {
	pub, err := publisher.New(cfg)
	if err != nil {
		return 0, fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	defer pub.Close()

	published := 0
	for i, rec := range records {
		fmt.Printf("[%d/%d] Publishing %s %s... ", i+1, len(records), formatDate(rec), rec.Hour)
		if err := pub.Publish(rec); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}
		if err := db.MarkPublished(rec.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}
	return published, nil
}

func filterByDate(records []models.PowerRecord, since, until string) ([]models.PowerRecord, error) {
	if since == "" && until == "" {
		return records, nil
	}

	var sinceDate, untilDate time.Time
	var err error
	if since != "" {
		sinceDate, err = parseDate(since)
		if err != nil {
			return nil, fmt.Errorf("parsing --since: %w", err)
		}
	}
	if until != "" {
		untilDate, err = parseDate(until)
		if err != nil {
			return nil, fmt.Errorf("parsing --until: %w", err)
		}
	}

	filtered := make([]models.PowerRecord, 0, len(records))
	for _, rec := range records {
		if !sinceDate.IsZero() && rec.Date.Before(sinceDate) {
			continue
		}
		if !untilDate.IsZero() && rec.Date.After(untilDate) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered, nil
}

// parseDate parses either an absolute date (YYYY-MM-DD) or a relative
// number of days back like "7d".
func parseDate(s string) (time.Time, error) {
	var days int
	if n, err := fmt.Sscanf(s, "%dd", &days); err == nil && n == 1 {
		return time.Now().AddDate(0, 0, -days), nil
	}
	return time.Parse("2006-01-02", s)
}
