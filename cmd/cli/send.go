package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/jobs"
	"github.com/outreachly/outreach-service/internal/pkg/cuid2"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <campaign-id>",
	Short: "Run a campaign sending job",
	Long: `Run a campaign sending job synchronously. The campaign owner's SMTP
configuration is used for delivery. Recipients without an email address are
skipped; per-recipient delivery faults are counted and never abort the run.`,
	Example: `  outreach-service send cmp_abc123`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSendCmd,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSendCmd(cmd *cobra.Command, args []string) error {
	campaignID := args[0]
	ctx := cmd.Context()

	env, err := buildEnv()
	if err != nil {
		return err
	}

	store := database.NewStore(database.Pool())
	task := &database.SendingTask{
		ID:         cuid2.GeneratePrefixedId("snd", cuid2.PrefixedIdOptions{}),
		CampaignID: campaignID,
	}
	if err := store.CreateSendingTask(ctx, task); err != nil {
		return fmt.Errorf("failed to create sending task: %w", err)
	}

	outcome := jobs.RunSending(ctx, env, task.ID, campaignID)
	if outcome.Failed() {
		return fmt.Errorf("sending failed: %w", outcome.Err)
	}

	fmt.Printf("Sending task %s completed: %d sent, %d skipped, %d failed of %d\n",
		task.ID, outcome.Send.SentCount, outcome.Send.SkippedCount, outcome.Send.FailedCount, outcome.Send.TotalRecipients)
	return nil
}
