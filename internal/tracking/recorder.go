package tracking

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/pkg/cuid2"
)

// TransparentPixelGIF is the 1x1 transparent GIF returned by the open
// tracking endpoint.
var TransparentPixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x21, 0xF9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x04, 0x01, 0x00, 0x3B,
}

// EventStore is the persistence surface the recorder needs
type EventStore interface {
	CampaignExists(ctx context.Context, campaignID string) (bool, error)
	ContactExists(ctx context.Context, contactID string) (bool, error)
	InsertTrackingEvent(ctx context.Context, event *database.TrackingEvent) error
}

// Request carries the context of one tracking hit
type Request struct {
	CampaignID     string
	ContactID      string
	IPAddress      string
	UserAgent      string
	LinkClickedURL string
}

// Recorder persists open and click events. Recording is best effort:
// unknown ids and store faults are logged and swallowed so the pixel and
// redirect responses never leak a failure to the mail client.
type Recorder struct {
	store  EventStore
	logger zerolog.Logger
}

// NewRecorder creates a recorder over the given store
func NewRecorder(store EventStore, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "tracking").Logger(),
	}
}

// RecordOpen appends an open event for a campaign+contact pair
func (r *Recorder) RecordOpen(ctx context.Context, req Request) {
	r.record(ctx, req, database.TrackingEventOpen)
}

// RecordClick appends a click event with the clicked link
func (r *Recorder) RecordClick(ctx context.Context, req Request) {
	r.record(ctx, req, database.TrackingEventClick)
}

func (r *Recorder) record(ctx context.Context, req Request, eventType database.TrackingEventType) {
	logger := r.logger.With().
		Str("campaign_id", req.CampaignID).
		Str("contact_id", req.ContactID).
		Str("event_type", string(eventType)).
		Logger()

	if ok, err := r.store.CampaignExists(ctx, req.CampaignID); err != nil || !ok {
		if err != nil {
			logger.Warn().Err(err).Msg("Campaign lookup failed, dropping tracking event")
		} else {
			logger.Debug().Msg("Unknown campaign, dropping tracking event")
		}
		return
	}
	if ok, err := r.store.ContactExists(ctx, req.ContactID); err != nil || !ok {
		if err != nil {
			logger.Warn().Err(err).Msg("Contact lookup failed, dropping tracking event")
		} else {
			logger.Debug().Msg("Unknown contact, dropping tracking event")
		}
		return
	}

	event := &database.TrackingEvent{
		ID:         cuid2.GeneratePrefixedId("evt", cuid2.PrefixedIdOptions{}),
		CampaignID: req.CampaignID,
		ContactID:  req.ContactID,
		EventType:  eventType,
		UserAgent:  req.UserAgent,
	}
	if req.IPAddress != "" {
		event.IPAddress = &req.IPAddress
	}
	if eventType == database.TrackingEventClick && req.LinkClickedURL != "" {
		event.LinkClickedURL = &req.LinkClickedURL
	}

	if err := r.store.InsertTrackingEvent(ctx, event); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist tracking event")
		return
	}

	eventsRecorded.WithLabelValues(string(eventType)).Inc()
}
