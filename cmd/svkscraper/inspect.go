package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RosenErik/svk-scraper/internal/browser"
	"github.com/RosenErik/svk-scraper/internal/scraper"
)

var (
	inspectVisible bool
	inspectOutput  string
	inspectDate    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dump the rendered data table for selector debugging",
	Long: `Loads the dashboard, runs the page setup and dumps the rendered table
HTML together with the resolved date control value. Useful when the
site's markup shifts and the scraper's selectors need updating.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectVisible, "visible", false, "Show browser window")
	inspectCmd.Flags().StringVar(&inspectOutput, "output", "", "Write table HTML to this file instead of stdout")
	inspectCmd.Flags().StringVar(&inspectDate, "date", "", "Navigate to this date first (YYYY-MM-DD)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sess, err := browser.New(context.Background(), !inspectVisible)
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer sess.Close()

	sc := scraper.New(sess, cfg)
	ctx := sess.Ctx()

	fmt.Printf("Navigating to %s...\n", cfg.GetBaseURL())
	if err := sc.Open(ctx); err != nil {
		return fmt.Errorf("opening dashboard: %w", err)
	}
	if err := sc.Setup(ctx); err != nil {
		return fmt.Errorf("setting up page: %w", err)
	}

	if inspectDate != "" {
		target, perr := time.Parse("2006-01-02", inspectDate)
		if perr != nil {
			return fmt.Errorf("parsing --date: %w", perr)
		}
		ok, nerr := sc.NavigateToDate(ctx, target)
		if nerr != nil {
			return fmt.Errorf("navigating to date: %w", nerr)
		}
		if !ok {
			fmt.Println("⚠ Date navigation could not be verified, dumping the current day")
		}
	}

	date, html, err := sc.InspectState(ctx)
	if err != nil {
		return err
	}

	if date != "" {
		fmt.Printf("Displayed date: %s\n", date)
	} else {
		fmt.Println("⚠ Could not read the date control")
	}

	if inspectOutput != "" {
		if err := os.WriteFile(inspectOutput, []byte(html), 0644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		fmt.Printf("✓ Wrote %d bytes to %s\n", len(html), inspectOutput)
		return nil
	}

	fmt.Println("--- table HTML ---")
	fmt.Println(html)
	return nil
}
