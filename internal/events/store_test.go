package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalytics/internal/events"
	"goalytics/internal/testsupport"
)

func TestEventStoreInsertAndFetch(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := events.NewEventStore(db, testsupport.GetLogger())

	event := &events.Event{
		WebsiteID: 1,
		EventType: events.EventTypePageView,
		URL:       "https://example.com/",
		SessionID: "s1",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, store.Insert(event))
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestForWebsiteBetweenOrderingAndBounds(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := events.NewEventStore(db, testsupport.GetLogger())

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		day.Add(15 * time.Hour),
		day.Add(3 * time.Hour),
		day.Add(9 * time.Hour),
	}
	for _, ts := range times {
		require.NoError(t, store.Insert(&events.Event{
			WebsiteID: 1,
			EventType: events.EventTypePageView,
			URL:       "https://example.com/",
			SessionID: "s1",
			Timestamp: ts,
		}))
	}
	// Outside the window and on another website.
	require.NoError(t, store.Insert(&events.Event{
		WebsiteID: 1, EventType: events.EventTypePageView,
		URL: "https://example.com/", SessionID: "s1",
		Timestamp: day.AddDate(0, 0, 1).Add(time.Hour),
	}))
	require.NoError(t, store.Insert(&events.Event{
		WebsiteID: 2, EventType: events.EventTypePageView,
		URL: "https://other.com/", SessionID: "s2",
		Timestamp: day.Add(5 * time.Hour),
	}))

	list, err := store.ForWebsiteBetween(1, day, day.Add(24*time.Hour-time.Nanosecond))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].Timestamp.Before(list[1].Timestamp))
	assert.True(t, list[1].Timestamp.Before(list[2].Timestamp))
}

func TestWebsiteIDsWithEventsBetween(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := events.NewEventStore(db, testsupport.GetLogger())

	now := time.Now().UTC()
	for _, websiteID := range []uint{3, 1, 3} {
		require.NoError(t, store.Insert(&events.Event{
			WebsiteID: websiteID,
			EventType: events.EventTypePageView,
			URL:       "https://example.com/",
			SessionID: "s1",
			Timestamp: now,
		}))
	}

	ids, err := store.WebsiteIDsWithEventsBetween(now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, ids)
}

func TestDeleteOlderThan(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := events.NewEventStore(db, testsupport.GetLogger())

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Insert(&events.Event{
			WebsiteID: 1, EventType: events.EventTypePageView,
			URL: "https://example.com/", SessionID: "s1",
			Timestamp: now.AddDate(0, 0, -100),
		}))
	}
	require.NoError(t, store.Insert(&events.Event{
		WebsiteID: 1, EventType: events.EventTypePageView,
		URL: "https://example.com/", SessionID: "s1",
		Timestamp: now,
	}))

	deleted, err := store.DeleteOlderThan(now.AddDate(0, 0, -90), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	var count int64
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCustomDataRoundTrip(t *testing.T) {
	encoded, err := events.EncodeCustomData(map[string]any{"plan": "pro", "seats": 5})
	require.NoError(t, err)

	event := &events.Event{CustomData: encoded}
	data := event.CustomDataMap()
	assert.Equal(t, "pro", data["plan"])
	assert.Equal(t, "5", data["seats"])
}

func TestCustomDataMapMalformed(t *testing.T) {
	event := &events.Event{CustomData: "{not json"}
	assert.Empty(t, event.CustomDataMap())
}

func TestValidEventType(t *testing.T) {
	assert.True(t, events.ValidEventType(events.EventTypePageView))
	assert.True(t, events.ValidEventType(events.EventTypeCustom))
	assert.False(t, events.ValidEventType(events.EventType("teleport")))
}
