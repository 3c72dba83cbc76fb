package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of visitor action an event records.
type EventType string

const (
	EventTypePageView   EventType = "page_view"
	EventTypeClick      EventType = "click"
	EventTypeScroll     EventType = "scroll"
	EventTypeFormSubmit EventType = "form_submit"
	EventTypeDownload   EventType = "download"
	EventTypeCustom     EventType = "custom"
)

// ValidEventType reports whether t is one of the known event types.
func ValidEventType(t EventType) bool {
	switch t {
	case EventTypePageView, EventTypeClick, EventTypeScroll,
		EventTypeFormSubmit, EventTypeDownload, EventTypeCustom:
		return true
	}
	return false
}

// Event represents a single tracked visitor action. Events are append-only:
// created at ingestion, never mutated, removed only by the retention cleanup job.
type Event struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	WebsiteID       uint      `gorm:"index:idx_events_website_timestamp;not null"`
	EventType       EventType `gorm:"index;not null"`
	URL             string    `gorm:"not null"`
	Referrer        string
	SessionID       string `gorm:"index;size:64;not null"`
	UserID          string `gorm:"index"`
	DurationSeconds int
	DeviceType      string
	OS              string
	Browser         string
	CustomData      string    `gorm:"type:text"`
	Timestamp       time.Time `gorm:"index:idx_events_website_timestamp;not null"`
	CreatedAt       time.Time
}

// CustomDataMap decodes the event's custom data JSON into a string map.
// Non-string values are stringified through their JSON form; a missing or
// malformed payload yields an empty map.
func (e *Event) CustomDataMap() map[string]string {
	out := make(map[string]string)
	if e.CustomData == "" {
		return out
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(e.CustomData), &raw); err != nil {
		return out
	}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}

// EncodeCustomData serializes an open key-value map for storage on an event.
func EncodeCustomData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
