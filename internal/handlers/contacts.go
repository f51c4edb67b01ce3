package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/middleware"
	"github.com/outreachly/outreach-service/internal/pkg/cuid2"
)

// contactStatusImported marks contacts created through CSV upload
const contactStatusImported = "Imported"

var contactExportHeader = []string{"source_url", "scraped_on", "name", "email", "phone", "city", "country", "personalized_info", "status"}

// ListContactsRequest represents query parameters for listing contacts
type ListContactsRequest struct {
	Search         string `form:"search"`
	ScrapingTaskID string `form:"scraping_task_id"`
	Status         string `form:"status"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset         int    `form:"offset" binding:"omitempty,min=0"`
}

// ListContactsResponse represents a page of contacts
type ListContactsResponse struct {
	Contacts []database.Contact `json:"contacts" jsonschema:"required"`
	Total    int                `json:"total" jsonschema:"required"`
}

// ListContacts returns a filtered page of the caller's contacts
func ListContacts(c *gin.Context) {
	var req ListContactsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = 50
	}

	contacts, total, err := store().ListContacts(c.Request.Context(), middleware.UserID(c), database.ContactFilter{
		Search:         req.Search,
		ScrapingTaskID: req.ScrapingTaskID,
		Status:         req.Status,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contacts"})
		return
	}

	c.JSON(http.StatusOK, ListContactsResponse{Contacts: contacts, Total: total})
}

// ContactRequest represents the create/update payload of a contact
type ContactRequest struct {
	SourceURL        string `json:"source_url"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	City             string `json:"city"`
	Country          string `json:"country"`
	PersonalizedInfo string `json:"personalized_info"`
}

// CreateContact creates one contact by hand
func CreateContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := &database.Contact{
		ID:               cuid2.GeneratePrefixedId("con", cuid2.PrefixedIdOptions{}),
		UserID:           middleware.UserID(c),
		SourceURL:        req.SourceURL,
		ScrapedOn:        time.Now(),
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		City:             req.City,
		Country:          req.Country,
		PersonalizedInfo: req.PersonalizedInfo,
		Status:           contactStatusImported,
	}
	if err := store().CreateContact(c.Request.Context(), contact); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contact"})
		return
	}

	c.JSON(http.StatusCreated, contact)
}

// GetContact returns one contact
func GetContact(c *gin.Context) {
	contact, err := store().GetContact(c.Request.Context(), c.Param("contactId"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load contact"})
		return
	}
	c.JSON(http.StatusOK, contact)
}

// UpdateContact writes the editable fields of a contact
func UpdateContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	contact, err := store().GetContact(ctx, c.Param("contactId"), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load contact"})
		return
	}

	contact.Name = req.Name
	contact.Email = req.Email
	contact.Phone = req.Phone
	contact.City = req.City
	contact.Country = req.Country
	contact.PersonalizedInfo = req.PersonalizedInfo
	if err := store().UpdateContact(ctx, contact); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contact"})
		return
	}

	c.JSON(http.StatusOK, contact)
}

// DeleteContact removes one contact
func DeleteContact(c *gin.Context) {
	deleted, err := store().DeleteContacts(c.Request.Context(), middleware.UserID(c), []string{c.Param("contactId")})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contact"})
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkDeleteContactsRequest represents the bulk delete payload
type BulkDeleteContactsRequest struct {
	ContactIDs []string `json:"contact_ids" binding:"required,min=1" jsonschema:"required"`
}

// BulkDeleteContacts removes a set of contacts and reports the actual count
func BulkDeleteContacts(c *gin.Context) {
	var req BulkDeleteContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := store().DeleteContacts(c.Request.Context(), middleware.UserID(c), req.ContactIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contacts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
}

// UploadContactsCSV imports contacts from an uploaded CSV file. Rows are
// matched by header name; unknown columns are ignored.
func UploadContactsCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a CSV"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read CSV header"})
		return
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	created := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error processing CSV: %v", err)})
			return
		}

		contact := &database.Contact{
			ID:               cuid2.GeneratePrefixedId("con", cuid2.PrefixedIdOptions{}),
			UserID:           userID,
			SourceURL:        field(row, "source_url"),
			ScrapedOn:        time.Now(),
			Name:             field(row, "name"),
			Email:            field(row, "email"),
			Phone:            field(row, "phone"),
			City:             field(row, "city"),
			Country:          field(row, "country"),
			PersonalizedInfo: field(row, "personalized_info"),
			Status:           contactStatusImported,
		}
		if err := store().CreateContact(ctx, contact); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import contacts"})
			return
		}
		created++
	}

	c.JSON(http.StatusCreated, gin.H{"contacts_created": created})
}

// ExportContactsCSV streams the caller's contacts as CSV, honoring the
// same filters as the listing endpoint
func ExportContactsCSV(c *gin.Context) {
	contacts, ok := contactsForExport(c)
	if !ok {
		return
	}

	c.Header("Content-Disposition", `attachment; filename="contacts.csv"`)
	c.Header("Content-Type", "text/csv")

	w := csv.NewWriter(c.Writer)
	err := w.Write(contactExportHeader)
	for _, contact := range contacts {
		if err != nil {
			break
		}
		err = w.Write(contactRow(contact))
	}
	if err == nil {
		w.Flush()
		err = w.Error()
	}
	if err != nil {
		// The body is already streaming; abort so the truncated file is
		// not mistaken for a complete export.
		c.Error(err)
		c.Abort()
	}
}

// ExportContactsXLSX streams the caller's contacts as a spreadsheet
func ExportContactsXLSX(c *gin.Context) {
	contacts, ok := contactsForExport(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Contacts"
	f.SetSheetName("Sheet1", sheet)
	for i, name := range contactExportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, name)
	}
	for rowIdx, contact := range contacts {
		for colIdx, value := range contactRow(contact) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	c.Header("Content-Disposition", `attachment; filename="contacts.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write spreadsheet"})
	}
}

func contactsForExport(c *gin.Context) ([]database.Contact, bool) {
	var req ListContactsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if req.Limit == 0 {
		req.Limit = 1000
	}

	contacts, _, err := store().ListContacts(c.Request.Context(), middleware.UserID(c), database.ContactFilter{
		Search:         req.Search,
		ScrapingTaskID: req.ScrapingTaskID,
		Status:         req.Status,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load contacts"})
		return nil, false
	}
	return contacts, true
}

func contactRow(c database.Contact) []string {
	return []string{
		c.SourceURL,
		c.ScrapedOn.Format("2006-01-02 15:04:05"),
		c.Name,
		c.Email,
		c.Phone,
		c.City,
		c.Country,
		c.PersonalizedInfo,
		c.Status,
	}
}
