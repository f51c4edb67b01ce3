package tracking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachly/outreach-service/internal/database"
)

// mockEventStore is an in-memory EventStore for testing.
type mockEventStore struct {
	campaigns map[string]bool
	contacts  map[string]bool
	events    []*database.TrackingEvent
	insertErr error
	lookupErr error
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{
		campaigns: make(map[string]bool),
		contacts:  make(map[string]bool),
	}
}

func (m *mockEventStore) CampaignExists(ctx context.Context, campaignID string) (bool, error) {
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	return m.campaigns[campaignID], nil
}

func (m *mockEventStore) ContactExists(ctx context.Context, contactID string) (bool, error) {
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	return m.contacts[contactID], nil
}

func (m *mockEventStore) InsertTrackingEvent(ctx context.Context, event *database.TrackingEvent) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, event)
	return nil
}

func TestRecorderRecordOpen(t *testing.T) {
	ctx := context.Background()

	store := newMockEventStore()
	store.campaigns["cmp_1"] = true
	store.contacts["con_1"] = true
	recorder := NewRecorder(store, zerolog.Nop())

	recorder.RecordOpen(ctx, Request{
		CampaignID: "cmp_1",
		ContactID:  "con_1",
		IPAddress:  "203.0.113.9",
		UserAgent:  "Mozilla/5.0",
	})

	require.Len(t, store.events, 1)
	event := store.events[0]
	assert.True(t, strings.HasPrefix(event.ID, "evt_"))
	assert.Equal(t, database.TrackingEventOpen, event.EventType)
	assert.Equal(t, "cmp_1", event.CampaignID)
	assert.Equal(t, "con_1", event.ContactID)
	require.NotNil(t, event.IPAddress)
	assert.Equal(t, "203.0.113.9", *event.IPAddress)
	assert.Nil(t, event.LinkClickedURL)
}

func TestRecorderRecordClick(t *testing.T) {
	ctx := context.Background()

	store := newMockEventStore()
	store.campaigns["cmp_1"] = true
	store.contacts["con_1"] = true
	recorder := NewRecorder(store, zerolog.Nop())

	recorder.RecordClick(ctx, Request{
		CampaignID:     "cmp_1",
		ContactID:      "con_1",
		LinkClickedURL: "https://acme.example/pricing",
	})

	require.Len(t, store.events, 1)
	event := store.events[0]
	assert.Equal(t, database.TrackingEventClick, event.EventType)
	require.NotNil(t, event.LinkClickedURL)
	assert.Equal(t, "https://acme.example/pricing", *event.LinkClickedURL)
	// No IP on the request means none on the event.
	assert.Nil(t, event.IPAddress)
}

func TestRecorderDropsSilently(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown campaign", func(t *testing.T) {
		store := newMockEventStore()
		store.contacts["con_1"] = true
		recorder := NewRecorder(store, zerolog.Nop())

		recorder.RecordOpen(ctx, Request{CampaignID: "cmp_nope", ContactID: "con_1"})

		assert.Empty(t, store.events)
	})

	t.Run("unknown contact", func(t *testing.T) {
		store := newMockEventStore()
		store.campaigns["cmp_1"] = true
		recorder := NewRecorder(store, zerolog.Nop())

		recorder.RecordOpen(ctx, Request{CampaignID: "cmp_1", ContactID: "con_nope"})

		assert.Empty(t, store.events)
	})

	t.Run("lookup fault", func(t *testing.T) {
		store := newMockEventStore()
		store.lookupErr = errors.New("connection reset")
		recorder := NewRecorder(store, zerolog.Nop())

		recorder.RecordOpen(ctx, Request{CampaignID: "cmp_1", ContactID: "con_1"})

		assert.Empty(t, store.events)
	})

	t.Run("insert fault", func(t *testing.T) {
		store := newMockEventStore()
		store.campaigns["cmp_1"] = true
		store.contacts["con_1"] = true
		store.insertErr = errors.New("insert failed")
		recorder := NewRecorder(store, zerolog.Nop())

		// Must not panic or surface the fault.
		recorder.RecordOpen(ctx, Request{CampaignID: "cmp_1", ContactID: "con_1"})
	})
}

func TestTransparentPixelGIF(t *testing.T) {
	// A valid 1x1 GIF89a, byte-for-byte what the open endpoint serves.
	assert.Len(t, TransparentPixelGIF, 43)
	assert.Equal(t, []byte("GIF89a"), TransparentPixelGIF[:6])
	assert.Equal(t, byte(0x3B), TransparentPixelGIF[len(TransparentPixelGIF)-1])
}
