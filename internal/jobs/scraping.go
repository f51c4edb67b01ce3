package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/pkg/cuid2"
	"github.com/outreachly/outreach-service/internal/storage"
	"github.com/outreachly/outreach-service/internal/types"
)

// ScrapeInput carries the arguments of one scraping task. Exactly one of
// URLsFilePath and URLs must be supplied.
type ScrapeInput struct {
	TaskID       string   `json:"taskId"`
	UserID       string   `json:"userId"`
	URLsFilePath string   `json:"urlsFilePath,omitempty"`
	URLs         []string `json:"urls,omitempty"`
}

// RunScraping executes one bulk scraping task: resolves the URL list, fetches
// every URL through the external fetch+extract capability, persists one
// contact row per result, writes the CSV artifact, and records the terminal
// state. Per-URL failures are counted, never escalated; counters are written
// in one checkpoint after the batch so polling readers never see a torn sum.
func RunScraping(ctx context.Context, env *Env, in ScrapeInput) Outcome {
	out := Outcome{TaskID: in.TaskID, Kind: types.TaskKindScraping}
	logger := env.Logger.With().Str("task_id", in.TaskID).Str("kind", string(types.TaskKindScraping)).Logger()

	hasFile := in.URLsFilePath != ""
	hasList := len(in.URLs) > 0
	if hasFile == hasList {
		// Caught before the record ever transitions to running.
		out.Err = fmt.Errorf("%w: exactly one of urlsFilePath or urls is required", ErrValidation)
		return out
	}

	if err := env.Scraping.MarkScrapingRunning(ctx, in.TaskID); err != nil {
		out.Err = fmt.Errorf("failed to mark scraping task running: %w", err)
		return out
	}
	tasksStarted.WithLabelValues(string(types.TaskKindScraping)).Inc()

	urls := in.URLs
	if hasFile {
		content, err := env.Artifacts.Get(ctx, in.URLsFilePath)
		if err != nil {
			out.Err = fmt.Errorf("failed to read URL list artifact: %w", err)
			failScraping(ctx, env, in.TaskID, out.Err, logger)
			return out
		}
		urls = splitURLLines(content)
	}

	logger.Info().Int("total_urls", len(urls)).Msg("Starting bulk scraping")
	scrapeBatchSize.Observe(float64(len(urls)))

	if err := env.Scraping.SetScrapingTotal(ctx, in.TaskID, len(urls)); err != nil {
		out.Err = fmt.Errorf("failed to record total URLs: %w", err)
		failScraping(ctx, env, in.TaskID, out.Err, logger)
		return out
	}

	results := make([]types.ScrapeResult, 0, len(urls))
	counters := types.ScrapeCounters{TotalURLs: len(urls)}

	for _, url := range urls {
		result, err := env.Fetcher.Fetch(ctx, url)
		if err != nil {
			// Per-URL failures are isolated: record the attempt, keep going.
			result = types.ScrapeResult{
				SourceURL: url,
				ScrapedOn: time.Now().Format("2006-01-02 15:04:05"),
				Status:    err.Error(),
			}
		}
		results = append(results, result)

		contact := contactFromResult(in.UserID, in.TaskID, result)
		if err := env.Scraping.CreateContact(ctx, contact); err != nil {
			// A store fault is a task-level fault. Contacts already created
			// are retained.
			out.Err = fmt.Errorf("failed to persist contact for %s: %w", url, err)
			failScraping(ctx, env, in.TaskID, out.Err, logger)
			return out
		}

		if result.Status == types.ScrapeStatusSuccess {
			counters.SuccessfulURLs++
			urlsScraped.WithLabelValues("success").Inc()
		} else {
			counters.FailedURLs++
			urlsScraped.WithLabelValues("failed").Inc()
		}
		counters.ProcessedURLs++
	}

	csvKey := storage.BuildScrapeCSVKey(in.TaskID)
	csvContent, err := encodeResultsCSV(results)
	if err != nil {
		out.Err = fmt.Errorf("failed to encode results CSV: %w", err)
		failScraping(ctx, env, in.TaskID, out.Err, logger)
		return out
	}
	metadata := &storage.Metadata{
		ContentType: "text/csv",
		TaskID:      in.TaskID,
		CreatedAt:   time.Now(),
	}
	if err := env.Artifacts.Put(ctx, csvKey, csvContent, metadata); err != nil {
		out.Err = fmt.Errorf("failed to write results CSV: %w", err)
		failScraping(ctx, env, in.TaskID, out.Err, logger)
		return out
	}

	if err := env.Scraping.CompleteScraping(ctx, in.TaskID, counters, csvKey); err != nil {
		// The record is still running; without the fail write it would
		// never reach a terminal state.
		out.Err = fmt.Errorf("failed to complete scraping task: %w", err)
		failScraping(ctx, env, in.TaskID, out.Err, logger)
		return out
	}
	tasksCompleted.WithLabelValues(string(types.TaskKindScraping)).Inc()

	out.Scrape = counters
	logger.Info().
		Int("processed", counters.ProcessedURLs).
		Int("successful", counters.SuccessfulURLs).
		Int("failed", counters.FailedURLs).
		Msg("Bulk scraping completed")
	return out
}

func failScraping(ctx context.Context, env *Env, taskID string, cause error, logger zerolog.Logger) {
	if err := env.Scraping.FailScraping(ctx, taskID, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("Failed to mark scraping task failed")
	}
	tasksFailed.WithLabelValues(string(types.TaskKindScraping)).Inc()
	logger.Error().Err(cause).Msg("Bulk scraping failed")
}

// splitURLLines parses a URL list artifact: one URL per line, blanks skipped
func splitURLLines(content []byte) []string {
	lines := strings.Split(string(content), "\n")
	urls := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			urls = append(urls, line)
		}
	}
	return urls
}

func contactFromResult(userID, taskID string, result types.ScrapeResult) *database.Contact {
	scrapedOn, err := time.Parse("2006-01-02 15:04:05", result.ScrapedOn)
	if err != nil {
		scrapedOn = time.Now()
	}
	return &database.Contact{
		ID:               cuid2.GeneratePrefixedId("con", cuid2.PrefixedIdOptions{}),
		UserID:           userID,
		ScrapingTaskID:   &taskID,
		SourceURL:        result.SourceURL,
		ScrapedOn:        scrapedOn,
		Name:             result.Name,
		Email:            result.Email,
		Phone:            result.Phone,
		City:             result.City,
		Country:          result.Country,
		PersonalizedInfo: result.PersonalizedInfo,
		Status:           result.Status,
	}
}

// encodeResultsCSV builds the tabular export of all scrape results,
// successes and failures alike
func encodeResultsCSV(results []types.ScrapeResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"source_url", "scraped_on", "name", "email", "phone", "city", "country", "personalized_info", "status"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range results {
		row := []string{r.SourceURL, r.ScrapedOn, r.Name, r.Email, r.Phone, r.City, r.Country, r.PersonalizedInfo, r.Status}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
