package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/jobs"
	"github.com/outreachly/outreach-service/internal/pkg/cuid2"
)

var discoverUserID string

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover <seed>",
	Short: "Run a domain discovery job for a seed URL or industry keyword",
	Long: `Run a domain discovery job synchronously. A seed starting with http
expands to the seed plus its well-known sub-pages; anything else is treated
as an industry keyword. The resulting URL list is written to artifact
storage and the task record is persisted like a queue-run job.`,
	Example: `  outreach-service discover https://example.com --user usr_abc123
  outreach-service discover "solar energy" --user usr_abc123`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscoverCmd,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&discoverUserID, "user", "", "Owning user id for the task record")
	discoverCmd.MarkFlagRequired("user")
}

func runDiscoverCmd(cmd *cobra.Command, args []string) error {
	seed := args[0]
	ctx := cmd.Context()

	env, err := buildEnv()
	if err != nil {
		return err
	}

	store := database.NewStore(database.Pool())
	task := &database.DiscoveryTask{
		ID:             cuid2.GeneratePrefixedId("dsc", cuid2.PrefixedIdOptions{}),
		UserID:         discoverUserID,
		IndustryOrSeed: seed,
	}
	if err := store.CreateDiscoveryTask(ctx, task); err != nil {
		return fmt.Errorf("failed to create discovery task: %w", err)
	}

	outcome := jobs.RunDiscovery(ctx, env, task.ID, seed)
	if outcome.Failed() {
		return fmt.Errorf("discovery failed: %w", outcome.Err)
	}

	fmt.Printf("Discovery task %s completed: %d URLs -> %s\n", task.ID, outcome.DiscoveredURLs, outcome.OutputPath)
	return nil
}
