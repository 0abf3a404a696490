package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/RosenErik/svk-scraper/internal/dataset"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Recompute summary statistics from the master dataset",
	Long: `Reads the master CSV dataset, prints the summary report and rewrites
the data_summary.txt file next to it.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := getDataDir(cfg)

	ds, err := dataset.Load(dataset.MasterPath(dir))
	if err != nil {
		return fmt.Errorf("loading master dataset: %w", err)
	}
	if len(ds.Records) == 0 {
		fmt.Println("No data found, run a scrape first")
		return nil
	}

	summary := dataset.Summarize(ds, time.Now())
	fmt.Print(summary.Render())
	if !summary.LatestTimestamp.IsZero() {
		fmt.Printf("\nLatest data point is %s\n", humanize.Time(summary.LatestTimestamp))
	}

	path := dataset.SummaryPath(dir)
	if err := dataset.WriteSummary(path, summary); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	fmt.Printf("\n✓ Summary written to %s\n", path)
	return nil
}
