package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/jobs"
	"github.com/outreachly/outreach-service/internal/middleware"
	"github.com/outreachly/outreach-service/internal/pkg/cuid2"
	"github.com/outreachly/outreach-service/internal/taskqueue"
	"github.com/outreachly/outreach-service/internal/types"
)

// InitiateScrapingRequest represents the scraping creation payload. Exactly
// one source of URLs must be given.
type InitiateScrapingRequest struct {
	DiscoveryTaskID string   `json:"discovery_task_id"`
	URLsList        []string `json:"urls_list"`
}

// InitiateScraping creates a pending scraping task and schedules its job.
// Input faults are rejected here, before any record is created.
func InitiateScraping(c *gin.Context) {
	var req InitiateScrapingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hasDiscovery := req.DiscoveryTaskID != ""
	hasList := len(req.URLsList) > 0
	if hasDiscovery == hasList {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either discovery_task_id or urls_list is required"})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	var discoveryTaskID *string
	var urlsFilePath string

	if hasDiscovery {
		discoveryTask, err := store().GetDiscoveryTask(ctx, req.DiscoveryTaskID, userID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Discovery task not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load discovery task"})
			return
		}
		if discoveryTask.Status != types.TaskStatusCompleted || discoveryTask.OutputFilePath == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Discovery task must be completed first"})
			return
		}
		discoveryTaskID = &discoveryTask.ID
		urlsFilePath = *discoveryTask.OutputFilePath
	}

	task := &database.ScrapingTask{
		ID:              cuid2.GeneratePrefixedId("scr", cuid2.PrefixedIdOptions{}),
		UserID:          userID,
		DiscoveryTaskID: discoveryTaskID,
	}
	if err := store().CreateScrapingTask(ctx, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create scraping task"})
		return
	}

	result := queue().ScheduleTask(ctx, taskqueue.ScheduleTaskInput{
		TaskType: string(taskqueue.TaskTypeScraping),
		Payload: jobs.ScrapeInput{
			TaskID:       task.ID,
			UserID:       userID,
			URLsFilePath: urlsFilePath,
			URLs:         req.URLsList,
		},
	})
	if result.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule scraping task"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetScrapingStatus returns one scraping task with its progress counters
func GetScrapingStatus(c *gin.Context) {
	task, err := store().GetScrapingTask(c.Request.Context(), c.Param("taskId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Scraping task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scraping task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListScrapingTasks returns the caller's scraping tasks, newest first
func ListScrapingTasks(c *gin.Context) {
	limit, offset := pageParams(c)
	tasks, err := store().ListScrapingTasks(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list scraping tasks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// DownloadScrapeResults streams the CSV artifact of a completed task
func DownloadScrapeResults(c *gin.Context) {
	ctx := c.Request.Context()
	task, err := store().GetScrapingTask(ctx, c.Param("taskId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Scraping task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scraping task"})
		return
	}
	if task.OutputCSVPath == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Scraping task has no output yet"})
		return
	}

	content, err := artifacts.Get(ctx, *task.OutputCSVPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read results CSV"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="results.csv"`)
	c.Data(http.StatusOK, "text/csv", content)
}
