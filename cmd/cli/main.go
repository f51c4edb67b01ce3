package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/outreachly/outreach-service/config"
	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/jobs"
	"github.com/outreachly/outreach-service/internal/mailer"
	"github.com/outreachly/outreach-service/internal/scraper"
	"github.com/outreachly/outreach-service/internal/storage"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "outreach-service",
	Short: "Outreach Service CLI - contact discovery and campaign tooling",
	Long: `A CLI tool for running outreach jobs directly: discovering candidate
domains from a seed, scraping contact details from URL lists, and sending
email campaigns. Useful for operations work and local debugging without
going through the HTTP API and task queue.`,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config is optional for some commands, don't fail here
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun runs before each command and initializes dependencies
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger()

	// All job commands need the database.
	if cfg == nil {
		return fmt.Errorf("config required for %s command but not loaded", cmd.Name())
	}
	if err := initDatabase(); err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	logger.Info().Msg("Database connected")

	return nil
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	// Always use console format for CLI
	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stdout
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: noColor}
	}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func initDatabase() error {
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}

	ctx := context.Background()
	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

// buildEnv assembles a job environment from the loaded config
func buildEnv() (*jobs.Env, error) {
	artifacts, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact storage: %w", err)
	}

	store := database.NewStore(database.Pool())
	return &jobs.Env{
		Discovery: store,
		Scraping:  store,
		Sending:   store,
		Artifacts: artifacts,
		Fetcher: scraper.New(scraper.Config{
			UserAgent:      cfg.Scraper.UserAgent,
			RequestTimeout: cfg.Scraper.RequestTimeout,
			RatePerSecond:  cfg.Scraper.RequestsPerSecond,
			RateBurst:      cfg.Scraper.Burst,
		}, *logger),
		Sender:          mailer.New(*logger),
		Logger:          *logger,
		TrackingBaseURL: cfg.Tracking.PublicBaseURL,
	}, nil
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
