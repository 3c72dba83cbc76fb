package stats

import (
	"encoding/json"
	"time"
)

// DailyStat is the precomputed rollup of one website's events for one UTC
// calendar day. There is exactly one row per (website_id, date); recomputing
// a day replaces every field rather than accumulating.
//
// PageViews counts ALL events for the day, not just page_view-typed ones.
// The name is historical and preserved for behavioral compatibility;
// TotalVisits is the page_view count.
type DailyStat struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID      uint      `gorm:"uniqueIndex:idx_daily_stats_website_date;not null" json:"website_id"`
	Date           time.Time `gorm:"uniqueIndex:idx_daily_stats_website_date;not null" json:"date"`
	TotalVisits    int       `json:"total_visits"`
	UniqueVisitors int       `json:"unique_visitors"`
	PageViews      int       `json:"page_views"`
	AvgDuration    float64   `json:"avg_duration"`
	BounceRate     int       `json:"bounce_rate"`
	TopPage        string    `json:"top_page"`
	TopReferrer    string    `json:"top_referrer"`
	DeviceStats    string    `gorm:"type:text" json:"device_stats"`
	BrowserStats   string    `gorm:"type:text" json:"browser_stats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DeviceStatsMap decodes the stored device frequency map.
func (d *DailyStat) DeviceStatsMap() map[string]int {
	return decodeFrequencyMap(d.DeviceStats)
}

// BrowserStatsMap decodes the stored browser frequency map.
func (d *DailyStat) BrowserStatsMap() map[string]int {
	return decodeFrequencyMap(d.BrowserStats)
}

func decodeFrequencyMap(raw string) map[string]int {
	out := make(map[string]int)
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]int{}
	}
	return out
}

func encodeFrequencyMap(counts map[string]int) string {
	if len(counts) == 0 {
		return "{}"
	}
	b, err := json.Marshal(counts)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayEnd returns the last representable instant of t's UTC calendar day.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).Add(24*time.Hour - time.Nanosecond)
}
