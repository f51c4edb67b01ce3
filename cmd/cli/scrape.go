package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/jobs"
	"github.com/outreachly/outreach-service/internal/pkg/cuid2"
)

var (
	scrapeUserID string
	scrapeFile   string
	scrapeURLs   []string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a bulk scraping job over a URL list",
	Long: `Run a bulk scraping job synchronously. URLs come either from an
artifact file produced by a discovery task or from repeated --url flags;
exactly one source must be given. Each URL produces a contact row, and
the full batch is exported as a CSV artifact.`,
	Example: `  outreach-service scrape --user usr_abc123 --urls-file discovery/dsc_x/urls.txt
  outreach-service scrape --user usr_abc123 --url https://example.com --url https://example.org`,
	RunE: runScrapeCmd,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeUserID, "user", "", "Owning user id for the task and contacts")
	scrapeCmd.Flags().StringVar(&scrapeFile, "urls-file", "", "Artifact key of a URL list file")
	scrapeCmd.Flags().StringArrayVar(&scrapeURLs, "url", nil, "URL to scrape (repeatable)")
	scrapeCmd.MarkFlagRequired("user")
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	hasFile := scrapeFile != ""
	hasList := len(scrapeURLs) > 0
	if hasFile == hasList {
		return fmt.Errorf("exactly one of --urls-file or --url is required")
	}

	ctx := cmd.Context()
	env, err := buildEnv()
	if err != nil {
		return err
	}

	store := database.NewStore(database.Pool())
	task := &database.ScrapingTask{
		ID:     cuid2.GeneratePrefixedId("scr", cuid2.PrefixedIdOptions{}),
		UserID: scrapeUserID,
	}
	if err := store.CreateScrapingTask(ctx, task); err != nil {
		return fmt.Errorf("failed to create scraping task: %w", err)
	}

	outcome := jobs.RunScraping(ctx, env, jobs.ScrapeInput{
		TaskID:       task.ID,
		UserID:       scrapeUserID,
		URLsFilePath: scrapeFile,
		URLs:         scrapeURLs,
	})
	if outcome.Failed() {
		return fmt.Errorf("scraping failed: %w", outcome.Err)
	}

	fmt.Printf("Scraping task %s completed: %d processed, %d successful, %d failed\n",
		task.ID, outcome.Scrape.ProcessedURLs, outcome.Scrape.SuccessfulURLs, outcome.Scrape.FailedURLs)
	return nil
}
