package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/tracking"
)

// stubEventStore accepts every id and records inserted events.
type stubEventStore struct {
	known  bool
	events []*database.TrackingEvent
}

func (s *stubEventStore) CampaignExists(ctx context.Context, campaignID string) (bool, error) {
	return s.known, nil
}

func (s *stubEventStore) ContactExists(ctx context.Context, contactID string) (bool, error) {
	return s.known, nil
}

func (s *stubEventStore) InsertTrackingEvent(ctx context.Context, event *database.TrackingEvent) error {
	s.events = append(s.events, event)
	return nil
}

func setupTrackingRouter(store *stubEventStore) *gin.Engine {
	Init(nil, tracking.NewRecorder(store, zerolog.Nop()))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/track/open/:campaignId/:contactId", TrackOpen)
	router.GET("/api/track/click/:campaignId/:contactId", TrackClick)
	return router
}

func TestTrackOpenServesPixel(t *testing.T) {
	store := &stubEventStore{known: true}
	router := setupTrackingRouter(store)

	req, err := http.NewRequest("GET", "/api/track/open/cmp_1/con_1", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "Thunderbird/115.0")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, tracking.TransparentPixelGIF, w.Body.Bytes())

	require.Len(t, store.events, 1)
	assert.Equal(t, database.TrackingEventOpen, store.events[0].EventType)
	assert.Equal(t, "Thunderbird/115.0", store.events[0].UserAgent)
}

func TestTrackOpenUnknownIDsStillServesPixel(t *testing.T) {
	store := &stubEventStore{known: false}
	router := setupTrackingRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/track/open/cmp_nope/con_nope", nil)
	router.ServeHTTP(w, req)

	// The pixel must render even when the event is dropped.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tracking.TransparentPixelGIF, w.Body.Bytes())
	assert.Empty(t, store.events)
}

func TestTrackClickRedirects(t *testing.T) {
	store := &stubEventStore{known: true}
	router := setupTrackingRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/track/click/cmp_1/con_1?url=https%3A%2F%2Facme.example%2Fpricing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://acme.example/pricing", w.Header().Get("Location"))

	require.Len(t, store.events, 1)
	assert.Equal(t, database.TrackingEventClick, store.events[0].EventType)
	require.NotNil(t, store.events[0].LinkClickedURL)
	assert.Equal(t, "https://acme.example/pricing", *store.events[0].LinkClickedURL)
}

func TestTrackClickMissingURL(t *testing.T) {
	store := &stubEventStore{known: true}
	router := setupTrackingRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/track/click/cmp_1/con_1", nil)
	router.ServeHTTP(w, req)

	// The fallback stays inert for the recipient, no error status.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Invalid link", w.Body.String())
	// A click without a destination is still not recorded as a link.
	require.Len(t, store.events, 1)
	assert.Nil(t, store.events[0].LinkClickedURL)
}
