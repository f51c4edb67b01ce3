package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/outreachly/outreach-service/internal/storage"
	"github.com/outreachly/outreach-service/internal/types"
)

// wellKnownPaths are appended to a seed URL during discovery
var wellKnownPaths = []string{"/about", "/contact", "/team", "/company"}

// syntheticDomainCount is the number of placeholder domains generated for a
// keyword seed. The keyword branch stands in for a real search integration.
const syntheticDomainCount = 100

// ExpandSeed turns a seed into a candidate URL list. A seed with a scheme
// prefix expands to itself plus well-known sub-paths; anything else is
// treated as an industry keyword and yields a deterministic synthetic list.
// No network access either way.
func ExpandSeed(seed string) []string {
	if strings.HasPrefix(seed, "http") {
		base := strings.TrimRight(seed, "/")
		urls := make([]string, 0, 1+len(wellKnownPaths))
		urls = append(urls, base)
		for _, path := range wellKnownPaths {
			urls = append(urls, base+path)
		}
		return urls
	}

	keyword := strings.ToLower(strings.ReplaceAll(seed, " ", "-"))
	urls := make([]string, 0, syntheticDomainCount)
	for i := 1; i <= syntheticDomainCount; i++ {
		urls = append(urls, fmt.Sprintf("https://example-%s-%d.com", keyword, i))
	}
	return urls
}

// RunDiscovery executes one domain discovery task: expands the seed, writes
// the URL list artifact, and records the terminal state on the task record.
func RunDiscovery(ctx context.Context, env *Env, taskID, seed string) Outcome {
	out := Outcome{TaskID: taskID, Kind: types.TaskKindDiscovery}
	logger := env.Logger.With().Str("task_id", taskID).Str("kind", string(types.TaskKindDiscovery)).Logger()

	if err := env.Discovery.MarkDiscoveryRunning(ctx, taskID); err != nil {
		out.Err = fmt.Errorf("failed to mark discovery task running: %w", err)
		return out
	}
	tasksStarted.WithLabelValues(string(types.TaskKindDiscovery)).Inc()

	logger.Info().Str("seed", seed).Msg("Starting domain discovery")

	urls := ExpandSeed(seed)

	key := storage.BuildDiscoveryKey(taskID)
	content := []byte(strings.Join(urls, "\n") + "\n")
	metadata := &storage.Metadata{
		ContentType: "text/plain",
		TaskID:      taskID,
		CreatedAt:   time.Now(),
	}
	if err := env.Artifacts.Put(ctx, key, content, metadata); err != nil {
		out.Err = fmt.Errorf("failed to write URL list artifact: %w", err)
		if failErr := env.Discovery.FailDiscovery(ctx, taskID, out.Err.Error()); failErr != nil {
			logger.Error().Err(failErr).Msg("Failed to mark discovery task failed")
		}
		tasksFailed.WithLabelValues(string(types.TaskKindDiscovery)).Inc()
		logger.Error().Err(out.Err).Msg("Domain discovery failed")
		return out
	}

	if err := env.Discovery.CompleteDiscovery(ctx, taskID, len(urls), key); err != nil {
		// The record is still running; without the fail write it would
		// never reach a terminal state.
		out.Err = fmt.Errorf("failed to complete discovery task: %w", err)
		if failErr := env.Discovery.FailDiscovery(ctx, taskID, out.Err.Error()); failErr != nil {
			logger.Error().Err(failErr).Msg("Failed to mark discovery task failed")
		}
		tasksFailed.WithLabelValues(string(types.TaskKindDiscovery)).Inc()
		logger.Error().Err(out.Err).Msg("Domain discovery failed")
		return out
	}
	tasksCompleted.WithLabelValues(string(types.TaskKindDiscovery)).Inc()

	out.DiscoveredURLs = len(urls)
	out.OutputPath = key

	logger.Info().Int("urls", len(urls)).Str("output", key).Msg("Domain discovery completed")
	return out
}
