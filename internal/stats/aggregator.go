package stats

import (
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"goalytics/internal/events"
)

// Aggregator computes daily rollups from raw events. Recomputing a day with
// unchanged inputs produces an identical DailyStat; the upsert replaces, so
// running it twice never inflates totals.
type Aggregator struct {
	events events.EventStore
	stats  StatStore
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(eventStore events.EventStore, statStore StatStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		events: eventStore,
		stats:  statStore,
		logger: logger,
	}
}

// Aggregate computes and upserts the rollup for one website and UTC day.
// When the website has no events that day nothing is written and computed
// is false.
func (a *Aggregator) Aggregate(websiteID uint, day time.Time) (*DailyStat, bool, error) {
	dayStart := DayStart(day)
	dayEnd := DayEnd(day)

	dayEvents, err := a.events.ForWebsiteBetween(websiteID, dayStart, dayEnd)
	if err != nil {
		return nil, false, err
	}
	if len(dayEvents) == 0 {
		a.logger.Debug("No events to aggregate",
			slog.Uint64("website_id", uint64(websiteID)),
			slog.Time("day", dayStart))
		return nil, false, nil
	}

	stat := Compute(websiteID, dayStart, dayEvents)
	if err := a.stats.Upsert(stat); err != nil {
		return nil, false, err
	}

	a.logger.Info("Aggregated daily stats",
		slog.Uint64("website_id", uint64(websiteID)),
		slog.Time("day", dayStart),
		slog.Int("events", len(dayEvents)))
	return stat, true, nil
}

// Compute builds the rollup for a day's events without touching storage.
func Compute(websiteID uint, day time.Time, dayEvents []events.Event) *DailyStat {
	totalVisits := 0
	durationSum := 0
	sessions := make(map[string]bool)
	sessionPageViews := make(map[string]int)
	pageCounts := make(map[string]int)
	referrerCounts := make(map[string]int)
	deviceCounts := make(map[string]int)
	browserCounts := make(map[string]int)

	for i := range dayEvents {
		e := &dayEvents[i]

		sessions[e.SessionID] = true
		deviceCounts[orUnknown(e.DeviceType)]++
		browserCounts[orUnknown(e.Browser)]++

		if e.Referrer != "" {
			if host := referrerHostname(e.Referrer); host != "" {
				referrerCounts[host]++
			}
		}

		if e.EventType == events.EventTypePageView {
			totalVisits++
			durationSum += e.DurationSeconds
			sessionPageViews[e.SessionID]++
			pageCounts[e.URL]++
		}
	}

	avgDuration := 0.0
	if totalVisits > 0 {
		avgDuration = float64(durationSum) / float64(totalVisits)
	}

	// A bounced session saw exactly one page view that day. Sessions are
	// counted from page_view events only.
	bounceRate := 0
	if len(sessionPageViews) > 0 {
		bounced := 0
		for _, count := range sessionPageViews {
			if count == 1 {
				bounced++
			}
		}
		bounceRate = int(math.Round(100 * float64(bounced) / float64(len(sessionPageViews))))
	}

	return &DailyStat{
		WebsiteID:      websiteID,
		Date:           DayStart(day),
		TotalVisits:    totalVisits,
		UniqueVisitors: len(sessions),
		// All events for the day, not just page views (see DailyStat doc).
		PageViews:    len(dayEvents),
		AvgDuration:  avgDuration,
		BounceRate:   bounceRate,
		TopPage:      topKey(pageCounts),
		TopReferrer:  topKey(referrerCounts),
		DeviceStats:  encodeFrequencyMap(deviceCounts),
		BrowserStats: encodeFrequencyMap(browserCounts),
	}
}

// topKey returns the most frequent key; ties break lexicographically so the
// result is stable regardless of map iteration order.
func topKey(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}

// referrerHostname extracts the referrer's hostname. Referrers arrive both
// as full URLs and as bare "host/path" strings.
func referrerHostname(referrer string) string {
	parsed, err := url.Parse(referrer)
	if err == nil && parsed.Hostname() != "" {
		return parsed.Hostname()
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(referrer, "https://"), "http://")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
