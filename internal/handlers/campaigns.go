package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/middleware"
	"github.com/outreachly/outreach-service/internal/pkg/cuid2"
	"github.com/outreachly/outreach-service/internal/taskqueue"
	"github.com/outreachly/outreach-service/internal/workers"
)

// CreateCampaignRequest represents the campaign creation payload
type CreateCampaignRequest struct {
	Name            string   `json:"name" binding:"required" jsonschema:"required"`
	Subject         string   `json:"subject" binding:"required" jsonschema:"required"`
	TemplateContent string   `json:"template_content" binding:"required" jsonschema:"required"`
	ContactIDs      []string `json:"contact_ids" binding:"required,min=1" jsonschema:"required"`
}

// CreateCampaign creates a draft campaign with its recipient links
func CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign := &database.Campaign{
		ID:              cuid2.GeneratePrefixedId("cmp", cuid2.PrefixedIdOptions{}),
		UserID:          middleware.UserID(c),
		Name:            req.Name,
		Subject:         req.Subject,
		TemplateContent: req.TemplateContent,
	}
	links := make([]database.CampaignContact, 0, len(req.ContactIDs))
	for _, contactID := range req.ContactIDs {
		links = append(links, database.CampaignContact{
			ID:         cuid2.GeneratePrefixedId("cct", cuid2.PrefixedIdOptions{}),
			CampaignID: campaign.ID,
			ContactID:  contactID,
		})
	}

	if err := store().CreateCampaign(c.Request.Context(), campaign, links); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create campaign"})
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

// ListCampaigns returns the caller's campaigns, newest first
func ListCampaigns(c *gin.Context) {
	limit, offset := pageParams(c)
	campaigns, err := store().ListCampaigns(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list campaigns"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

// GetCampaign returns one campaign with its recipient count
func GetCampaign(c *gin.Context) {
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

	recipients, err := store().CountCampaignRecipients(ctx, campaign.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count recipients"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign":        campaign,
		"recipient_count": recipients,
	})
}

// UpdateCampaignRequest represents the campaign update payload
type UpdateCampaignRequest struct {
	Name            string `json:"name" binding:"required"`
	Subject         string `json:"subject" binding:"required"`
	TemplateContent string `json:"template_content" binding:"required"`
}

// UpdateCampaign writes the editable fields of a draft campaign
func UpdateCampaign(c *gin.Context) {
	var req UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign := &database.Campaign{
		ID:              c.Param("campaignId"),
		UserID:          middleware.UserID(c),
		Name:            req.Name,
		Subject:         req.Subject,
		TemplateContent: req.TemplateContent,
	}
	if err := store().UpdateCampaign(c.Request.Context(), campaign); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found or not editable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update campaign"})
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// DeleteCampaign removes a campaign with its links and tracking events
func DeleteCampaign(c *gin.Context) {
	err := store().DeleteCampaign(c.Request.Context(), c.Param("campaignId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete campaign"})
		return
	}
	c.Status(http.StatusNoContent)
}

// AddCampaignContactsRequest represents the recipient-add payload
type AddCampaignContactsRequest struct {
	ContactIDs []string `json:"contact_ids" binding:"required,min=1"`
}

// AddCampaignContacts links more contacts to a campaign. Already linked
// contacts are skipped silently.
func AddCampaignContacts(c *gin.Context) {
	var req AddCampaignContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

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

	links := make([]database.CampaignContact, 0, len(req.ContactIDs))
	for _, contactID := range req.ContactIDs {
		links = append(links, database.CampaignContact{
			ID:         cuid2.GeneratePrefixedId("cct", cuid2.PrefixedIdOptions{}),
			CampaignID: campaign.ID,
			ContactID:  contactID,
		})
	}
	if err := store().AddCampaignContacts(ctx, links); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add campaign contacts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"added": len(links)})
}

// SendCampaign creates a sending task for a campaign and schedules its job.
// A campaign already mid-send is rejected up front; the per-campaign lease
// closes the remaining race at execution time.
func SendCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	campaign, err := store().GetUserCampaign(ctx, c.Param("campaignId"), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load campaign"})
		return
	}
	if campaign.Status == database.CampaignStatusSending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campaign is already being sent"})
		return
	}

	if _, err := store().GetSMTPConfiguration(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "SMTP configuration is required before sending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load SMTP configuration"})
		return
	}

	task := &database.SendingTask{
		ID:         cuid2.GeneratePrefixedId("snd", cuid2.PrefixedIdOptions{}),
		CampaignID: campaign.ID,
	}
	if err := store().CreateSendingTask(ctx, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create sending task"})
		return
	}

	result := queue().ScheduleTask(ctx, taskqueue.ScheduleTaskInput{
		TaskType: string(taskqueue.TaskTypeSending),
		Payload: workers.SendingPayload{
			TaskID:     task.ID,
			CampaignID: campaign.ID,
		},
	})
	if result.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule sending task"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetSendingStatus returns one sending task with its counters
func GetSendingStatus(c *gin.Context) {
	task, err := store().GetSendingTask(c.Request.Context(), c.Param("sendingTaskId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sending task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sending task"})
		return
	}
	if task.CampaignID != c.Param("campaignId") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sending task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}
