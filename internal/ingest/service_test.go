package ingest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalytics/internal/conversions"
	"goalytics/internal/events"
	"goalytics/internal/goals"
	"goalytics/internal/ingest"
	"goalytics/internal/testsupport"
	"goalytics/internal/websites"
)

func TestCollectStoresEvent(t *testing.T) {
	dbManager, logger, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	service := ingest.NewService(dbManager, logger)

	result, err := service.Collect(&ingest.CollectInput{
		URL:        "https://example.com/pricing",
		EventType:  events.EventTypePageView,
		SessionID:  "session-1",
		DeviceType: "desktop",
		Browser:    "chrome",
		Timestamp:  time.Now().UTC(),
		IPAddress:  "203.0.113.5",
		UserAgent:  "test-agent",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Event)
	assert.False(t, result.Dropped)
	assert.Equal(t, website.ID, result.Event.WebsiteID)
	assert.NotZero(t, result.Event.ID)
	assert.Empty(t, result.MatchedGoals)
}

func TestCollectUnknownWebsite(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	service := ingest.NewService(dbManager, logger)

	_, err := service.Collect(&ingest.CollectInput{
		URL:       "https://unregistered.com/page",
		SessionID: "session-1",
	})
	var notFound *websites.WebsiteNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCollectDefaultsEventType(t *testing.T) {
	dbManager, logger, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	service := ingest.NewService(dbManager, logger)

	result, err := service.Collect(&ingest.CollectInput{
		URL:       "https://example.com/",
		SessionID: "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, events.EventTypePageView, result.Event.EventType)
	assert.False(t, result.Event.Timestamp.IsZero())
}

func TestCollectRejectsUnknownEventType(t *testing.T) {
	dbManager, logger, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	service := ingest.NewService(dbManager, logger)

	_, err := service.Collect(&ingest.CollectInput{
		URL:       "https://example.com/",
		EventType: events.EventType("teleport"),
		SessionID: "session-1",
	})
	require.Error(t, err)
}

func TestCollectGeneratesFallbackSession(t *testing.T) {
	dbManager, logger, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	service := ingest.NewService(dbManager, logger)

	result, err := service.Collect(&ingest.CollectInput{
		URL:       "https://example.com/",
		IPAddress: "203.0.113.5",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Event.SessionID)

	// Same actor, same day: same fallback identity.
	again, err := service.Collect(&ingest.CollectInput{
		URL:       "https://example.com/other",
		IPAddress: "203.0.113.5",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, result.Event.SessionID, again.Event.SessionID)
}

func TestCollectRecordsMatchingGoals(t *testing.T) {
	dbManager, logger, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()

	thanksGoal := testsupport.CreateTestGoal(t, db, website.ID, "thanks page", goals.GoalTypeURLDestination,
		goals.Conditions{"url": "/thanks", "match_type": "contains"})
	testsupport.CreateTestGoal(t, db, website.ID, "other page", goals.GoalTypeURLDestination,
		goals.Conditions{"url": "/other", "match_type": "contains"})

	service := ingest.NewService(dbManager, logger)
	result, err := service.Collect(&ingest.CollectInput{
		URL:       "https://example.com/thanks",
		SessionID: "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"thanks page"}, result.MatchedGoals)

	store := conversions.NewConversionStore(db, logger)
	exists, err := store.Exists(thanksGoal.ID, "session-1", result.Event.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCollectDuplicateEventStillStored(t *testing.T) {
	dbManager, logger, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	goal := testsupport.CreateTestGoal(t, db, website.ID, "thanks", goals.GoalTypeURLDestination,
		goals.Conditions{"url": "/thanks", "match_type": "contains"})

	service := ingest.NewService(dbManager, logger)

	// Two distinct events in the same session both match; each gets its own
	// conversion since the event id differs.
	for i := 0; i < 2; i++ {
		_, err := service.Collect(&ingest.CollectInput{
			URL:       "https://example.com/thanks",
			SessionID: "session-1",
		})
		require.NoError(t, err)
	}

	store := conversions.NewConversionStore(db, logger)
	_, total, err := store.ForGoal(goal.ID, nil, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestCollectBatchItemsAreIndependent(t *testing.T) {
	dbManager, logger, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	service := ingest.NewService(dbManager, logger)

	result := service.CollectBatch([]ingest.CollectInput{
		{URL: "https://example.com/a", SessionID: "s1"},
		{URL: "https://unregistered.com/x", SessionID: "s1"},
		{URL: "https://example.com/b", SessionID: "s1"},
	})

	assert.Equal(t, 2, result.Processed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Index)

	db := dbManager.GetConnection()
	var count int64
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestCollectEmptyURL(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	service := ingest.NewService(dbManager, logger)

	_, err := service.Collect(&ingest.CollectInput{SessionID: "s1"})
	require.Error(t, err)
}
