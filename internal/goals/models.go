package goals

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GoalType identifies which matching strategy a goal uses.
type GoalType string

const (
	GoalTypeURLDestination GoalType = "url_destination"
	GoalTypeEvent          GoalType = "event"
	GoalTypePageDuration   GoalType = "page_duration"
	GoalTypeClick          GoalType = "click"
	GoalTypeDownload       GoalType = "download"
	GoalTypeFormSubmit     GoalType = "form_submit"
)

// Match modes for string conditions.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
	MatchRegex    = "regex"
)

// Goal is a user-configured conversion rule. Goals are mutable and
// soft-deleted; the matcher always reads them fresh so live edits apply
// to the next evaluation pass.
type Goal struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID  uint           `gorm:"index;not null" json:"website_id"`
	OwnerID    uint           `gorm:"index" json:"owner_id"`
	Name       string         `gorm:"not null" json:"name"`
	GoalType   GoalType       `gorm:"index;not null" json:"goal_type"`
	Conditions string         `gorm:"type:text" json:"conditions"`
	Value      float64        `json:"value"`
	IsActive   bool           `gorm:"index;default:true" json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Conditions is the decoded, type-specific condition map of a goal.
type Conditions map[string]any

// ConditionsMap decodes the goal's stored condition JSON. A missing or
// malformed payload yields an empty map, which no evaluator matches on
// except the download type (where "no conditions" means "any download").
func (g *Goal) ConditionsMap() Conditions {
	cond := Conditions{}
	if g.Conditions == "" {
		return cond
	}
	if err := json.Unmarshal([]byte(g.Conditions), &cond); err != nil {
		return Conditions{}
	}
	return cond
}

// EncodeConditions serializes a condition map for storage on a goal.
func EncodeConditions(cond Conditions) (string, error) {
	if len(cond) == 0 {
		return "", nil
	}
	b, err := json.Marshal(cond)
	if err != nil {
		return "", fmt.Errorf("failed to encode goal conditions: %w", err)
	}
	return string(b), nil
}

// Str returns the string value for key, or "" when absent or not a string.
func (c Conditions) Str(key string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Num returns the numeric value for key. JSON numbers decode as float64;
// numeric strings are accepted too since tracker payloads often stringify.
func (c Conditions) Num(key string) (float64, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// StrMap returns the nested string map for key (e.g. an expected custom_data
// shape), or nil when absent.
func (c Conditions) StrMap(key string) map[string]string {
	v, ok := c[key]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}
