package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/types"
)

// RunSending executes one campaign sending task: resolves the recipient set,
// renders the template per recipient, hands each message to the external mail
// transport, and keeps the campaign status in lockstep with the task record.
// Counters advance progressively so polling readers see monotonically
// increasing counts.
func RunSending(ctx context.Context, env *Env, taskID, campaignID string) Outcome {
	out := Outcome{TaskID: taskID, Kind: types.TaskKindSending}
	logger := env.Logger.With().
		Str("task_id", taskID).
		Str("kind", string(types.TaskKindSending)).
		Str("campaign_id", campaignID).
		Logger()

	if err := env.Sending.MarkSendingRunning(ctx, taskID); err != nil {
		out.Err = fmt.Errorf("failed to mark sending task running: %w", err)
		return out
	}
	tasksStarted.WithLabelValues(string(types.TaskKindSending)).Inc()

	campaign, err := env.Sending.GetCampaign(ctx, campaignID)
	if err != nil {
		out.Err = fmt.Errorf("failed to load campaign: %w", err)
		failSending(ctx, env, taskID, "", out.Err, logger)
		return out
	}

	logger.Info().Str("campaign", campaign.Name).Msg("Starting campaign sending")

	// Missing transport configuration fails the whole task, not individual
	// recipients.
	smtpConfig, err := env.Sending.GetSMTPConfiguration(ctx, campaign.UserID)
	if err != nil {
		out.Err = fmt.Errorf("SMTP configuration not found for user: %w", err)
		failSending(ctx, env, taskID, campaignID, out.Err, logger)
		return out
	}

	acquired, err := env.Sending.AcquireCampaignLease(ctx, campaignID, taskID)
	if err != nil {
		out.Err = fmt.Errorf("failed to acquire campaign lease: %w", err)
		failSending(ctx, env, taskID, campaignID, out.Err, logger)
		return out
	}
	if !acquired {
		// Another sending task holds the lease; leave the campaign status to
		// its holder.
		out.Err = fmt.Errorf("another send is already running for campaign %s", campaignID)
		failSending(ctx, env, taskID, "", out.Err, logger)
		return out
	}
	defer func() {
		if err := env.Sending.ReleaseCampaignLease(ctx, campaignID, taskID); err != nil {
			logger.Error().Err(err).Msg("Failed to release campaign lease")
		}
	}()

	if err := env.Sending.SetCampaignStatus(ctx, campaignID, database.CampaignStatusSending); err != nil {
		out.Err = fmt.Errorf("failed to mark campaign sending: %w", err)
		failSending(ctx, env, taskID, campaignID, out.Err, logger)
		return out
	}

	recipients, err := env.Sending.CampaignRecipients(ctx, campaignID)
	if err != nil {
		out.Err = fmt.Errorf("failed to resolve recipients: %w", err)
		failSending(ctx, env, taskID, campaignID, out.Err, logger)
		return out
	}

	counters := types.SendCounters{TotalRecipients: len(recipients)}
	if err := env.Sending.SetSendingTotal(ctx, taskID, len(recipients)); err != nil {
		out.Err = fmt.Errorf("failed to record total recipients: %w", err)
		failSending(ctx, env, taskID, campaignID, out.Err, logger)
		return out
	}

	for _, recipient := range recipients {
		if recipient.Email == "" {
			counters.SkippedCount++
			emailsAttempted.WithLabelValues("skipped").Inc()
		} else {
			body := RenderTemplate(campaign.TemplateContent, RecipientFields(recipient))
			body = AppendOpenPixel(body, env.TrackingBaseURL, campaignID, recipient.ID)
			if err := env.Sender.Send(ctx, smtpConfig, recipient.Email, campaign.Subject, body); err != nil {
				// Transport fault for one recipient never aborts the rest.
				counters.FailedCount++
				emailsAttempted.WithLabelValues("failed").Inc()
				logger.Warn().Err(err).Str("recipient", recipient.Email).Msg("Send failed for recipient")
			} else {
				counters.SentCount++
				emailsAttempted.WithLabelValues("sent").Inc()
			}
		}

		if err := env.Sending.CheckpointSending(ctx, taskID, counters); err != nil {
			out.Err = fmt.Errorf("failed to checkpoint send counters: %w", err)
			failSending(ctx, env, taskID, campaignID, out.Err, logger)
			out.Send = counters
			return out
		}
	}

	if err := env.Sending.CompleteSending(ctx, taskID, counters); err != nil {
		// The record is still running; without the fail write it would
		// never reach a terminal state.
		out.Err = fmt.Errorf("failed to complete sending task: %w", err)
		failSending(ctx, env, taskID, campaignID, out.Err, logger)
		out.Send = counters
		return out
	}
	if err := env.Sending.SetCampaignStatus(ctx, campaignID, database.CampaignStatusCompleted); err != nil {
		out.Err = fmt.Errorf("failed to mark campaign completed: %w", err)
		out.Send = counters
		return out
	}
	tasksCompleted.WithLabelValues(string(types.TaskKindSending)).Inc()

	out.Send = counters
	logger.Info().
		Int("sent", counters.SentCount).
		Int("skipped", counters.SkippedCount).
		Int("failed", counters.FailedCount).
		Msg("Campaign sending completed")
	return out
}

// failSending marks the task failed and, when campaignID is set, moves the
// campaign to failed in lockstep.
func failSending(ctx context.Context, env *Env, taskID, campaignID string, cause error, logger zerolog.Logger) {
	if err := env.Sending.FailSending(ctx, taskID, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("Failed to mark sending task failed")
	}
	if campaignID != "" {
		if err := env.Sending.SetCampaignStatus(ctx, campaignID, database.CampaignStatusFailed); err != nil {
			logger.Error().Err(err).Msg("Failed to mark campaign failed")
		}
	}
	tasksFailed.WithLabelValues(string(types.TaskKindSending)).Inc()
	logger.Error().Err(cause).Msg("Campaign sending failed")
}
