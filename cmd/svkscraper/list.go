package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/RosenErik/svk-scraper/pkg/models"
)

var (
	listDate  string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored power records",
	Long:  `Displays hourly power records stored in the database, newest first.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listDate, "date", "", "Only show records for this date (YYYY-MM-DD)")
	listCmd.Flags().IntVar(&listLimit, "limit", 48, "Maximum number of records to show (0 = all)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var records []models.PowerRecord
	if listDate != "" {
		date, perr := time.Parse("2006-01-02", listDate)
		if perr != nil {
			return fmt.Errorf("parsing --date: %w", perr)
		}
		records, err = db.ListByDate(date)
	} else {
		records, err = db.List(listLimit)
	}
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No records found")
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Date", "Hour", "Forecast (MW)", "Consumption (MW)", "Source"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			formatDate(rec),
			rec.Hour,
			formatMW(rec.ForecastMW),
			formatMW(rec.ConsumptionMW),
			rec.DateSource,
		})
	}
	t.Render()

	total, err := db.Count()
	if err != nil {
		return fmt.Errorf("counting records: %w", err)
	}
	fmt.Printf("Showing %d of %s stored records\n", len(records), humanize.Comma(int64(total)))

	latest, err := db.LatestTimestamp()
	if err != nil {
		return fmt.Errorf("querying latest data point: %w", err)
	}
	if !latest.IsZero() {
		fmt.Printf("Latest data point: %s (%s)\n", latest.Format("2006-01-02 15:04"), humanize.Time(latest))
	}
	return nil
}

func formatMW(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func formatDate(rec models.PowerRecord) string {
	if rec.Date.IsZero() && rec.RawDate != "" {
		return rec.RawDate
	}
	return rec.Date.Format("2006-01-02")
}
