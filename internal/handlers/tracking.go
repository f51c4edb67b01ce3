package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/middleware"
	"github.com/outreachly/outreach-service/internal/tracking"
)

// TrackingSummaryResponse represents the per-campaign engagement summary
type TrackingSummaryResponse struct {
	CampaignID      string  `json:"campaign_id" jsonschema:"required"`
	CampaignName    string  `json:"campaign_name" jsonschema:"required"`
	TotalRecipients int     `json:"total_recipients" jsonschema:"required"`
	Opens           int     `json:"opens" jsonschema:"required"`
	UniqueOpens     int     `json:"unique_opens" jsonschema:"required"`
	Clicks          int     `json:"clicks" jsonschema:"required"`
	UniqueClicks    int     `json:"unique_clicks" jsonschema:"required"`
	OpenRate        float64 `json:"open_rate" jsonschema:"required"`
	ClickRate       float64 `json:"click_rate" jsonschema:"required"`
	SentCount       int     `json:"sent_count"`
	SkippedCount    int     `json:"skipped_count"`
	FailedCount     int     `json:"failed_count"`
}

// GetTrackingSummary returns engagement totals and rates for a campaign
func GetTrackingSummary(c *gin.Context) {
	ctx := c.Request.Context()
	campaign, err := store().GetUserCampaign(ctx, c.Param("campaignId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load campaign"})
		return
	}

	summary, err := store().GetTrackingSummary(ctx, campaign.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate tracking events"})
		return
	}
	totalRecipients, err := store().CountCampaignRecipients(ctx, campaign.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count recipients"})
		return
	}

	resp := TrackingSummaryResponse{
		CampaignID:      campaign.ID,
		CampaignName:    campaign.Name,
		TotalRecipients: totalRecipients,
		Opens:           summary.TotalOpens,
		UniqueOpens:     summary.UniqueOpens,
		Clicks:          summary.TotalClicks,
		UniqueClicks:    summary.UniqueClicks,
		SentCount:       summary.TotalSent,
		SkippedCount:    summary.TotalSkipped,
		FailedCount:     summary.TotalRejected,
	}
	if totalRecipients > 0 {
		resp.OpenRate = roundRate(float64(summary.TotalOpens) / float64(totalRecipients) * 100)
		resp.ClickRate = roundRate(float64(summary.TotalClicks) / float64(totalRecipients) * 100)
	}

	c.JSON(http.StatusOK, resp)
}

// ListTrackingOpens returns a campaign's open events, newest first
func ListTrackingOpens(c *gin.Context) {
	listTrackingEvents(c, database.TrackingEventOpen)
}

// ListTrackingClicks returns a campaign's click events, newest first
func ListTrackingClicks(c *gin.Context) {
	listTrackingEvents(c, database.TrackingEventClick)
}

func listTrackingEvents(c *gin.Context, eventType database.TrackingEventType) {
	ctx := c.Request.Context()
	campaign, err := store().GetUserCampaign(ctx, c.Param("campaignId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load campaign"})
		return
	}

	events, err := store().ListTrackingEvents(ctx, campaign.ID, eventType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tracking events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ListTrackingSkipped returns the per-sending-task skip and failure
// counters for a campaign
func ListTrackingSkipped(c *gin.Context) {
	ctx := c.Request.Context()
	campaign, err := store().GetUserCampaign(ctx, c.Param("campaignId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load campaign"})
		return
	}

	skipped, err := store().ListSkippedReports(ctx, campaign.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list skipped reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"skipped": skipped})
}

// TrackOpen records an open event and returns the transparent pixel. The
// pixel is served no matter what: a tracking fault must never break mail
// rendering.
func TrackOpen(c *gin.Context) {
	recorder.RecordOpen(c.Request.Context(), tracking.Request{
		CampaignID: c.Param("campaignId"),
		ContactID:  c.Param("contactId"),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "image/gif", tracking.TransparentPixelGIF)
}

// TrackClick records a click event and redirects to the original link
func TrackClick(c *gin.Context) {
	originalURL := c.Query("url")

	recorder.RecordClick(c.Request.Context(), tracking.Request{
		CampaignID:     c.Param("campaignId"),
		ContactID:      c.Param("contactId"),
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		LinkClickedURL: originalURL,
	})

	if originalURL == "" {
		// Inert response; a broken link must not surface as an error to
		// the mail recipient.
		c.String(http.StatusOK, "Invalid link")
		return
	}
	c.Redirect(http.StatusFound, originalURL)
}

func roundRate(v float64) float64 {
	return math.Round(v*100) / 100
}
