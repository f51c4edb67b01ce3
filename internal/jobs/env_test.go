package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/storage"
	"github.com/outreachly/outreach-service/internal/types"
)

// mockStorage is an in-memory implementation of storage.Storage for testing.
type mockStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	failPut bool
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Put(ctx context.Context, key string, content []byte, metadata *storage.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("storage backend unavailable")
	}
	m.files[key] = content
	return nil
}

func (m *mockStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return content, nil
}

func (m *mockStorage) GetInfo(ctx context.Context, key string) (*storage.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return &storage.FileInfo{Key: key, Size: int64(len(content))}, nil
}

func (m *mockStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok, nil
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *mockStorage) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.files {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// mockDiscoveryStore tracks discovery task state with guarded transitions,
// mirroring what the SQL layer enforces.
type mockDiscoveryStore struct {
	status       types.TaskStatus
	urlCount     int
	outputPath   string
	failureMsg   string
	failComplete error
}

func newMockDiscoveryStore() *mockDiscoveryStore {
	return &mockDiscoveryStore{status: types.TaskStatusPending}
}

func (m *mockDiscoveryStore) MarkDiscoveryRunning(ctx context.Context, id string) error {
	if m.status != types.TaskStatusPending {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusRunning
	return nil
}

func (m *mockDiscoveryStore) CompleteDiscovery(ctx context.Context, id string, urlCount int, outputPath string) error {
	if m.failComplete != nil {
		return m.failComplete
	}
	if m.status != types.TaskStatusRunning {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusCompleted
	m.urlCount = urlCount
	m.outputPath = outputPath
	return nil
}

func (m *mockDiscoveryStore) FailDiscovery(ctx context.Context, id, message string) error {
	if m.status != types.TaskStatusRunning {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusFailed
	m.failureMsg = message
	return nil
}

// mockScrapingStore tracks scraping task state and created contacts.
type mockScrapingStore struct {
	status       types.TaskStatus
	total        int
	counters     types.ScrapeCounters
	csvPath      string
	failureMsg   string
	contacts     []*database.Contact
	failOnNth    int // 1-based index of CreateContact call that fails, 0 disables
	createCalls  int
	failComplete error
}

func newMockScrapingStore() *mockScrapingStore {
	return &mockScrapingStore{status: types.TaskStatusPending}
}

func (m *mockScrapingStore) MarkScrapingRunning(ctx context.Context, id string) error {
	if m.status != types.TaskStatusPending {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusRunning
	return nil
}

func (m *mockScrapingStore) SetScrapingTotal(ctx context.Context, id string, totalURLs int) error {
	m.total = totalURLs
	return nil
}

func (m *mockScrapingStore) CompleteScraping(ctx context.Context, id string, counters types.ScrapeCounters, csvPath string) error {
	if m.failComplete != nil {
		return m.failComplete
	}
	if m.status != types.TaskStatusRunning {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusCompleted
	m.counters = counters
	m.csvPath = csvPath
	return nil
}

func (m *mockScrapingStore) FailScraping(ctx context.Context, id, message string) error {
	if m.status != types.TaskStatusRunning {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusFailed
	m.failureMsg = message
	return nil
}

func (m *mockScrapingStore) CreateContact(ctx context.Context, contact *database.Contact) error {
	m.createCalls++
	if m.failOnNth > 0 && m.createCalls == m.failOnNth {
		return errors.New("contact insert failed")
	}
	m.contacts = append(m.contacts, contact)
	return nil
}

// mockSendingStore tracks sending task state, campaign status, and every
// counter checkpoint so tests can assert monotonic progress.
type mockSendingStore struct {
	status         types.TaskStatus
	total          int
	checkpoints    []types.SendCounters
	finalCounters  types.SendCounters
	failureMsg     string
	campaign       *database.Campaign
	campaignStatus database.CampaignStatus
	smtp           *database.SMTPConfiguration
	recipients     []database.Contact
	leaseHeld      bool
	leaseReleased  bool
	failComplete   error
}

func newMockSendingStore(campaign *database.Campaign) *mockSendingStore {
	return &mockSendingStore{
		status:         types.TaskStatusPending,
		campaign:       campaign,
		campaignStatus: campaign.Status,
	}
}

func (m *mockSendingStore) MarkSendingRunning(ctx context.Context, id string) error {
	if m.status != types.TaskStatusPending {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusRunning
	return nil
}

func (m *mockSendingStore) SetSendingTotal(ctx context.Context, id string, totalRecipients int) error {
	m.total = totalRecipients
	return nil
}

func (m *mockSendingStore) CheckpointSending(ctx context.Context, id string, counters types.SendCounters) error {
	m.checkpoints = append(m.checkpoints, counters)
	return nil
}

func (m *mockSendingStore) CompleteSending(ctx context.Context, id string, counters types.SendCounters) error {
	if m.failComplete != nil {
		return m.failComplete
	}
	if m.status != types.TaskStatusRunning {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusCompleted
	m.finalCounters = counters
	return nil
}

func (m *mockSendingStore) FailSending(ctx context.Context, id, message string) error {
	if m.status != types.TaskStatusRunning {
		return fmt.Errorf("invalid transition from %s", m.status)
	}
	m.status = types.TaskStatusFailed
	m.failureMsg = message
	return nil
}

func (m *mockSendingStore) GetCampaign(ctx context.Context, campaignID string) (*database.Campaign, error) {
	if m.campaign == nil || m.campaign.ID != campaignID {
		return nil, database.ErrNotFound
	}
	return m.campaign, nil
}

func (m *mockSendingStore) SetCampaignStatus(ctx context.Context, campaignID string, status database.CampaignStatus) error {
	m.campaignStatus = status
	return nil
}

func (m *mockSendingStore) CampaignRecipients(ctx context.Context, campaignID string) ([]database.Contact, error) {
	return m.recipients, nil
}

func (m *mockSendingStore) GetSMTPConfiguration(ctx context.Context, userID string) (*database.SMTPConfiguration, error) {
	if m.smtp == nil {
		return nil, database.ErrNotFound
	}
	return m.smtp, nil
}

func (m *mockSendingStore) AcquireCampaignLease(ctx context.Context, campaignID, taskID string) (bool, error) {
	if m.leaseHeld {
		return false, nil
	}
	m.leaseHeld = true
	return true, nil
}

func (m *mockSendingStore) ReleaseCampaignLease(ctx context.Context, campaignID, taskID string) error {
	m.leaseHeld = false
	m.leaseReleased = true
	return nil
}

// mockFetcher serves canned scrape results keyed by URL.
type mockFetcher struct {
	results map[string]types.ScrapeResult
	errs    map[string]error
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (types.ScrapeResult, error) {
	if err, ok := m.errs[url]; ok {
		return types.ScrapeResult{SourceURL: url}, err
	}
	if result, ok := m.results[url]; ok {
		return result, nil
	}
	return types.ScrapeResult{
		SourceURL: url,
		ScrapedOn: "2025-01-01 00:00:00",
		Status:    types.ScrapeStatusSuccess,
	}, nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

// mockSender records delivered mail and fails for configured recipients.
type mockSender struct {
	sent    []sentMail
	failFor map[string]error
}

func (m *mockSender) Send(ctx context.Context, cfg *database.SMTPConfiguration, to, subject, body string) error {
	if err, ok := m.failFor[to]; ok {
		return err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func testEnv() *Env {
	return &Env{
		Artifacts: newMockStorage(),
		Fetcher:   &mockFetcher{},
		Sender:    &mockSender{},
		Logger:    zerolog.Nop(),
	}
}
