package conversions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalytics/internal/conversions"
	"goalytics/internal/events"
	"goalytics/internal/goals"
	"goalytics/internal/testsupport"
)

func setupRecorder(t *testing.T) (*conversions.Recorder, *conversions.GormConversionStore, *goals.Goal, *events.Event) {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	website := testsupport.CreateTestWebsite(db, "example.com")

	goal := testsupport.CreateTestGoal(t, db, website.ID, "signup", goals.GoalTypeURLDestination,
		goals.Conditions{"url": "/done", "match_type": "contains"})
	goal.Value = 25
	event := testsupport.CreateTestEvent(t, db, website.ID, events.EventTypePageView,
		"https://example.com/done", "session-1", time.Now().UTC())

	store := conversions.NewConversionStore(db, logger)
	return conversions.NewRecorder(store, logger), store, goal, event
}

func TestRecordIfNew(t *testing.T) {
	recorder, store, goal, event := setupRecorder(t)

	result, err := recorder.RecordIfNew(goal, event, conversions.ActorMeta{
		UserAgent: "test-agent",
		IPAddress: "203.0.113.9",
	})
	require.NoError(t, err)
	require.True(t, result.Recorded)
	require.NotNil(t, result.Conversion)
	assert.Equal(t, goal.ID, result.Conversion.GoalID)
	assert.Equal(t, event.ID, result.Conversion.EventID)
	assert.Equal(t, "session-1", result.Conversion.SessionID)
	assert.Equal(t, 25.0, result.Conversion.Value)
	assert.Equal(t, "https://example.com/done", result.Conversion.PageURL)

	exists, err := store.Exists(goal.ID, event.SessionID, event.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRecordIfNewIsIdempotent(t *testing.T) {
	recorder, store, goal, event := setupRecorder(t)

	first, err := recorder.RecordIfNew(goal, event, conversions.ActorMeta{})
	require.NoError(t, err)
	assert.True(t, first.Recorded)

	// Replaying the same pair must be a silent no-op, not an error.
	second, err := recorder.RecordIfNew(goal, event, conversions.ActorMeta{})
	require.NoError(t, err)
	assert.False(t, second.Recorded)

	list, total, err := store.ForGoal(goal.ID, nil, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestRecordIfNewValueFromCustomData(t *testing.T) {
	recorder, _, goal, event := setupRecorder(t)

	encoded, err := events.EncodeCustomData(map[string]any{"value": "99.5"})
	require.NoError(t, err)
	event.CustomData = encoded

	result, err := recorder.RecordIfNew(goal, event, conversions.ActorMeta{})
	require.NoError(t, err)
	require.True(t, result.Recorded)
	assert.Equal(t, 99.5, result.Conversion.Value)
}

func TestInsertDuplicateIsNoOp(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := conversions.NewConversionStore(db, testsupport.GetLogger())

	conv := &conversions.Conversion{
		GoalID:      1,
		WebsiteID:   1,
		SessionID:   "s-1",
		EventID:     7,
		ConvertedAt: time.Now().UTC(),
	}
	inserted, err := store.Insert(conv)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &conversions.Conversion{
		GoalID:      1,
		WebsiteID:   1,
		SessionID:   "s-1",
		EventID:     7,
		ConvertedAt: time.Now().UTC(),
	}
	inserted, err = store.Insert(dup)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestSameSessionDifferentEventsBothRecord(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	website := testsupport.CreateTestWebsite(db, "example.com")
	goal := testsupport.CreateTestGoal(t, db, website.ID, "dl", goals.GoalTypeDownload, goals.Conditions{})

	store := conversions.NewConversionStore(db, logger)
	recorder := conversions.NewRecorder(store, logger)

	first := testsupport.CreateTestEvent(t, db, website.ID, events.EventTypeDownload,
		"https://example.com/a.pdf", "session-1", time.Now().UTC())
	second := testsupport.CreateTestEvent(t, db, website.ID, events.EventTypeDownload,
		"https://example.com/b.pdf", "session-1", time.Now().UTC())

	r1, err := recorder.RecordIfNew(goal, first, conversions.ActorMeta{})
	require.NoError(t, err)
	r2, err := recorder.RecordIfNew(goal, second, conversions.ActorMeta{})
	require.NoError(t, err)
	assert.True(t, r1.Recorded)
	assert.True(t, r2.Recorded)

	_, total, err := store.ForGoal(goal.ID, nil, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestDailyCountsForGoal(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := conversions.NewConversionStore(db, testsupport.GetLogger())

	day1 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{day1, day1.Add(time.Hour), day2} {
		inserted, err := store.Insert(&conversions.Conversion{
			GoalID:      1,
			WebsiteID:   1,
			SessionID:   "s",
			EventID:     uint(i + 1),
			ConvertedAt: ts,
		})
		require.NoError(t, err)
		require.True(t, inserted)
	}

	counts, err := store.DailyCountsForGoal(1, nil, nil)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "2026-08-20", counts[0].Date)
	assert.Equal(t, int64(2), counts[0].Count)
	assert.Equal(t, "2026-08-21", counts[1].Date)
	assert.Equal(t, int64(1), counts[1].Count)
}
