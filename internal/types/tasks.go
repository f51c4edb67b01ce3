package types

import "fmt"

// TaskStatus represents the lifecycle state of an asynchronous task record
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskKind identifies which of the three job variants a record belongs to
type TaskKind string

const (
	TaskKindDiscovery TaskKind = "discovery"
	TaskKindScraping  TaskKind = "scraping"
	TaskKindSending   TaskKind = "sending"
)

// Terminal reports whether a status permits no further transitions
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether moving from s to next is a legal step.
// The only legal moves are pending->running and running->{completed,failed}.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning
	case TaskStatusRunning:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// ValidateTransition returns an error describing an illegal transition
func ValidateTransition(from, to TaskStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("invalid task transition %s -> %s", from, to)
	}
	return nil
}

// ScrapeCounters holds the progress counters of a scraping task.
// ProcessedURLs equals SuccessfulURLs + FailedURLs for a completed task.
type ScrapeCounters struct {
	TotalURLs      int `json:"totalUrls"`
	ProcessedURLs  int `json:"processedUrls"`
	SuccessfulURLs int `json:"successfulUrls"`
	FailedURLs     int `json:"failedUrls"`
}

// SendCounters holds the progress counters of a sending task.
// Sent + Skipped + Failed never exceeds TotalRecipients, and equals it
// once the task is completed.
type SendCounters struct {
	TotalRecipients int `json:"totalRecipients"`
	SentCount       int `json:"sentCount"`
	SkippedCount    int `json:"skippedCount"`
	FailedCount     int `json:"failedCount"`
}

// ScrapeResult is one unit of output from the fetch+extract capability.
// A non-success Status still produces a contact row for the audit trail.
type ScrapeResult struct {
	SourceURL        string `json:"sourceUrl"`
	ScrapedOn        string `json:"scrapedOn"` // "2006-01-02 15:04:05"
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	City             string `json:"city"`
	Country          string `json:"country"`
	PersonalizedInfo string `json:"personalizedInfo"`
	Status           string `json:"status"`
}

// ScrapeStatusSuccess is the status tag a successful scrape carries
const ScrapeStatusSuccess = "Success"
