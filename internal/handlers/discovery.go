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

// InitiateDiscoveryRequest represents the discovery creation payload
type InitiateDiscoveryRequest struct {
	IndustryOrSeedDomain string `json:"industry_or_seed_domain" binding:"required" jsonschema:"required"`
}

// InitiateDiscovery creates a pending discovery task and schedules its job
func InitiateDiscovery(c *gin.Context) {
	var req InitiateDiscoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "industry_or_seed_domain is required"})
		return
	}

	ctx := c.Request.Context()
	task := &database.DiscoveryTask{
		ID:             cuid2.GeneratePrefixedId("dsc", cuid2.PrefixedIdOptions{}),
		UserID:         middleware.UserID(c),
		IndustryOrSeed: req.IndustryOrSeedDomain,
	}
	if err := store().CreateDiscoveryTask(ctx, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create discovery task"})
		return
	}

	result := queue().ScheduleTask(ctx, taskqueue.ScheduleTaskInput{
		TaskType: string(taskqueue.TaskTypeDiscovery),
		Payload: workers.DiscoveryPayload{
			TaskID: task.ID,
			Seed:   req.IndustryOrSeedDomain,
		},
	})
	if result.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule discovery task"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetDiscoveryStatus returns one discovery task with its counters
func GetDiscoveryStatus(c *gin.Context) {
	task, err := store().GetDiscoveryTask(c.Request.Context(), c.Param("taskId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Discovery task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load discovery task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListDiscoveryTasks returns the caller's discovery tasks, newest first
func ListDiscoveryTasks(c *gin.Context) {
	limit, offset := pageParams(c)
	tasks, err := store().ListDiscoveryTasks(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list discovery tasks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// DownloadDiscoveryURLs streams the URL list artifact of a completed task
func DownloadDiscoveryURLs(c *gin.Context) {
	ctx := c.Request.Context()
	task, err := store().GetDiscoveryTask(ctx, c.Param("taskId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Discovery task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load discovery task"})
		return
	}
	if task.OutputFilePath == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Discovery task has no output yet"})
		return
	}

	content, err := artifacts.Get(ctx, *task.OutputFilePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read URL list"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="urls.txt"`)
	c.Data(http.StatusOK, "text/plain", content)
}

// pageParams reads limit/offset query params with the listing defaults
func pageParams(c *gin.Context) (limit, offset int) {
	var q struct {
		Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
		Offset int `form:"offset" binding:"omitempty,min=0"`
	}
	if err := c.ShouldBindQuery(&q); err != nil || q.Limit == 0 {
		return 20, q.Offset
	}
	return q.Limit, q.Offset
}
