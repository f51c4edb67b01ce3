package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/middleware"
)

// SMTPConfigRequest represents the SMTP configuration payload. The password
// is write-only; responses never echo it.
type SMTPConfigRequest struct {
	Server   string `json:"smtp_server" binding:"required" jsonschema:"required"`
	Port     int    `json:"smtp_port" binding:"required,min=1,max=65535" jsonschema:"required"`
	Username string `json:"username" binding:"required" jsonschema:"required"`
	Password string `json:"password" binding:"required" jsonschema:"required"`
	FromName string `json:"from_name"`
}

// GetSMTPConfig returns the caller's mail transport settings
func GetSMTPConfig(c *gin.Context) {
	cfg, err := store().GetSMTPConfiguration(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "SMTP configuration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load SMTP configuration"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PutSMTPConfig creates or replaces the caller's mail transport settings
func PutSMTPConfig(c *gin.Context) {
	var req SMTPConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := &database.SMTPConfiguration{
		UserID:   middleware.UserID(c),
		Server:   req.Server,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		FromName: req.FromName,
	}
	if err := store().UpsertSMTPConfiguration(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save SMTP configuration"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeleteSMTPConfig removes the caller's mail transport settings
func DeleteSMTPConfig(c *gin.Context) {
	err := store().DeleteSMTPConfiguration(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "SMTP configuration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete SMTP configuration"})
		return
	}
	c.Status(http.StatusNoContent)
}
