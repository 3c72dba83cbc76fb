package conversions

import "time"

// Conversion is the immutable record of one goal being satisfied by one
// event. The composite unique index over (goal_id, session_id, event_id) is
// the system's deduplication authority: the synchronous ingestion check and
// the catch-up sweep may both attempt the same insert, and the database
// constraint decides which one wins.
type Conversion struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	GoalID      uint   `gorm:"uniqueIndex:idx_conversions_goal_session_event;not null" json:"goal_id"`
	WebsiteID   uint   `gorm:"index;not null" json:"website_id"`
	SessionID   string `gorm:"uniqueIndex:idx_conversions_goal_session_event;size:64;not null" json:"session_id"`
	EventID     uint   `gorm:"uniqueIndex:idx_conversions_goal_session_event;not null" json:"event_id"`
	UserAgent   string `json:"user_agent"`
	IPAddress   string `json:"ip_address"`
	Referrer    string `json:"referrer"`
	PageURL     string `json:"page_url"`
	Value       float64 `json:"value"`
	CustomData  string  `gorm:"type:text" json:"custom_data"`
	ConvertedAt time.Time `gorm:"index;not null" json:"converted_at"`
}

// DailyCount is a per-day conversion total for a goal.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
