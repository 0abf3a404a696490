package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RosenErik/svk-scraper/internal/config"
	"github.com/RosenErik/svk-scraper/internal/store"
)

var (
	cfgFile  string
	dbPath   string
	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "svkscraper",
	Short: "Scrape hourly power data from the SVK control room dashboard",
	Long: `svkscraper collects hourly power forecast and consumption figures for the
Stockholm (SE3) bidding area from Svenska kraftnät's Kontrollrummet dashboard.

The dashboard has no public API, so the scraper drives a headless browser,
walks the date picker backward one day at a time and extracts the rendered
data table. Results are merged into a master CSV dataset and mirrored into
a local SQLite database for listing and MQTT publishing.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./svkscraper.db)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for CSV output (default from config: ./data)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default is info)")
}

// setupLogging configures the global logger. Level comes from the flag,
// then the LOG_LEVEL env var, then defaults to info.
func setupLogging() {
	godotenv.Load()

	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "svkscraper.db"
}

// getDataDir returns the CSV output directory, flag over config.
func getDataDir(cfg *config.Config) string {
	if dataDir != "" {
		return dataDir
	}
	return cfg.GetDataDir()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openStore() (*store.Store, error) {
	path := getDBPath()
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return store.New(path)
}
