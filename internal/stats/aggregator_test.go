package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalytics/internal/events"
	"goalytics/internal/stats"
	"goalytics/internal/testsupport"
)

var testDay = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

func pageView(websiteID uint, url, session string, duration int, at time.Time) events.Event {
	return events.Event{
		WebsiteID:       websiteID,
		EventType:       events.EventTypePageView,
		URL:             url,
		SessionID:       session,
		DurationSeconds: duration,
		DeviceType:      "desktop",
		Browser:         "chrome",
		Timestamp:       at,
	}
}

func TestComputeBasicMetrics(t *testing.T) {
	at := testDay.Add(10 * time.Hour)
	dayEvents := []events.Event{
		pageView(1, "https://example.com/", "s1", 10, at),
		pageView(1, "https://example.com/pricing", "s1", 30, at.Add(time.Minute)),
		pageView(1, "https://example.com/", "s2", 20, at.Add(2*time.Minute)),
		{
			WebsiteID:  1,
			EventType:  events.EventTypeClick,
			URL:        "https://example.com/pricing",
			SessionID:  "s1",
			DeviceType: "mobile",
			Browser:    "safari",
			Timestamp:  at.Add(3 * time.Minute),
		},
	}

	stat := stats.Compute(1, testDay, dayEvents)

	assert.Equal(t, 3, stat.TotalVisits)
	assert.Equal(t, 2, stat.UniqueVisitors)
	// PageViews counts every event of the day, clicks included.
	assert.Equal(t, 4, stat.PageViews)
	assert.InDelta(t, 20.0, stat.AvgDuration, 0.0001)
	assert.Equal(t, "https://example.com/", stat.TopPage)
	assert.Equal(t, map[string]int{"desktop": 3, "mobile": 1}, stat.DeviceStatsMap())
	assert.Equal(t, map[string]int{"chrome": 3, "safari": 1}, stat.BrowserStatsMap())
}

func TestComputeBounceRate(t *testing.T) {
	at := testDay.Add(9 * time.Hour)

	// s1 bounces (one page view), s2 does not, s3 only clicked and is not
	// counted in the bounce denominator.
	dayEvents := []events.Event{
		pageView(1, "https://example.com/a", "s1", 5, at),
		pageView(1, "https://example.com/a", "s2", 5, at),
		pageView(1, "https://example.com/b", "s2", 5, at.Add(time.Minute)),
		{
			WebsiteID: 1,
			EventType: events.EventTypeClick,
			URL:       "https://example.com/a",
			SessionID: "s3",
			Timestamp: at,
		},
	}

	stat := stats.Compute(1, testDay, dayEvents)
	assert.Equal(t, 50, stat.BounceRate)
	assert.Equal(t, 3, stat.UniqueVisitors)
}

func TestComputeNoPageViews(t *testing.T) {
	dayEvents := []events.Event{
		{
			WebsiteID: 1,
			EventType: events.EventTypeCustom,
			URL:       "https://example.com/",
			SessionID: "s1",
			Timestamp: testDay.Add(time.Hour),
		},
	}

	stat := stats.Compute(1, testDay, dayEvents)
	assert.Equal(t, 0, stat.TotalVisits)
	assert.Equal(t, 0, stat.BounceRate)
	assert.Equal(t, 0.0, stat.AvgDuration)
	assert.Equal(t, "", stat.TopPage)
	assert.Equal(t, 1, stat.PageViews)
	assert.Equal(t, 1, stat.UniqueVisitors)
}

func TestComputeTopReferrerHostnames(t *testing.T) {
	at := testDay.Add(8 * time.Hour)
	withRef := func(ref string) events.Event {
		e := pageView(1, "https://example.com/", "s1", 0, at)
		e.Referrer = ref
		return e
	}

	stat := stats.Compute(1, testDay, []events.Event{
		withRef("https://news.ycombinator.com/item?id=1"),
		withRef("https://news.ycombinator.com/"),
		withRef("https://google.com/search"),
	})
	assert.Equal(t, "news.ycombinator.com", stat.TopReferrer)
}

func TestComputeDeterministicTieBreak(t *testing.T) {
	at := testDay.Add(8 * time.Hour)
	dayEvents := []events.Event{
		pageView(1, "https://example.com/b", "s1", 0, at),
		pageView(1, "https://example.com/a", "s1", 0, at),
	}

	// Equal counts must resolve the same way on every run.
	for i := 0; i < 10; i++ {
		stat := stats.Compute(1, testDay, dayEvents)
		assert.Equal(t, "https://example.com/a", stat.TopPage)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	at := testDay.Add(12 * time.Hour)
	dayEvents := []events.Event{
		pageView(1, "https://example.com/", "s1", 10, at),
		pageView(1, "https://example.com/x", "s2", 20, at),
		{
			WebsiteID:  1,
			EventType:  events.EventTypeScroll,
			URL:        "https://example.com/",
			SessionID:  "s1",
			DeviceType: "tablet",
			Browser:    "firefox",
			Timestamp:  at,
		},
	}

	first := stats.Compute(1, testDay, dayEvents)
	second := stats.Compute(1, testDay, dayEvents)
	assert.Equal(t, first, second)
}

func TestAggregateWritesAndReplaces(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	website := testsupport.CreateTestWebsite(db, "example.com")

	eventStore := events.NewEventStore(db, logger)
	statStore := stats.NewStatStore(db, logger)
	aggregator := stats.NewAggregator(eventStore, statStore, logger)

	at := testDay.Add(10 * time.Hour)
	testsupport.CreateTestEvent(t, db, website.ID, events.EventTypePageView, "https://example.com/", "s1", at)

	stat, computed, err := aggregator.Aggregate(website.ID, testDay)
	require.NoError(t, err)
	require.True(t, computed)
	assert.Equal(t, 1, stat.TotalVisits)

	// A new event lands late; recomputing replaces the stored row rather
	// than stacking on top of it.
	testsupport.CreateTestEvent(t, db, website.ID, events.EventTypePageView, "https://example.com/b", "s1", at.Add(time.Hour))

	stat, computed, err = aggregator.Aggregate(website.ID, testDay)
	require.NoError(t, err)
	require.True(t, computed)
	assert.Equal(t, 2, stat.TotalVisits)

	stored, err := statStore.ByWebsiteAndDate(website.ID, testDay)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.TotalVisits)
	assert.Equal(t, 2, stored.PageViews)

	var count int64
	require.NoError(t, db.Model(&stats.DailyStat{}).Where("website_id = ?", website.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAggregateEmptyDayIsNoOp(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	website := testsupport.CreateTestWebsite(db, "example.com")

	aggregator := stats.NewAggregator(
		events.NewEventStore(db, logger),
		stats.NewStatStore(db, logger),
		logger,
	)

	stat, computed, err := aggregator.Aggregate(website.ID, testDay)
	require.NoError(t, err)
	assert.False(t, computed)
	assert.Nil(t, stat)

	stored, err := stats.NewStatStore(db, logger).ByWebsiteAndDate(website.ID, testDay)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAggregateIgnoresOtherDays(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	website := testsupport.CreateTestWebsite(db, "example.com")

	testsupport.CreateTestEvent(t, db, website.ID, events.EventTypePageView,
		"https://example.com/", "s1", testDay.Add(10*time.Hour))
	testsupport.CreateTestEvent(t, db, website.ID, events.EventTypePageView,
		"https://example.com/", "s1", testDay.AddDate(0, 0, 1).Add(time.Hour))

	aggregator := stats.NewAggregator(
		events.NewEventStore(db, logger),
		stats.NewStatStore(db, logger),
		logger,
	)

	stat, computed, err := aggregator.Aggregate(website.ID, testDay)
	require.NoError(t, err)
	require.True(t, computed)
	assert.Equal(t, 1, stat.TotalVisits)
	assert.Equal(t, 1, stat.PageViews)
}
