package goals

import "fmt"

// ValidationError signals a malformed goal definition. It is raised before
// storage so broken condition maps never reach the matcher.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid goal %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

var validMatchTypes = map[string]bool{
	MatchExact:    true,
	MatchContains: true,
	MatchRegex:    true,
}

var validGoalTypes = map[GoalType]bool{
	GoalTypeURLDestination: true,
	GoalTypeEvent:          true,
	GoalTypePageDuration:   true,
	GoalTypeClick:          true,
	GoalTypeDownload:       true,
	GoalTypeFormSubmit:     true,
}

// Validate checks the goal's type and conditions. A regex condition value is
// not compiled here: a pattern that fails to compile is a matcher-level
// concern (the goal simply never matches), not a storage rejection.
func Validate(goal *Goal) error {
	if goal.Name == "" {
		return NewValidationError("name", "name is required")
	}
	if goal.WebsiteID == 0 {
		return NewValidationError("website_id", "website is required")
	}
	if !validGoalTypes[goal.GoalType] {
		return NewValidationError("goal_type", fmt.Sprintf("unknown goal type %q", goal.GoalType))
	}
	return validateConditions(goal.GoalType, goal.ConditionsMap())
}

func validateConditions(goalType GoalType, cond Conditions) error {
	switch goalType {
	case GoalTypeURLDestination:
		if cond.Str("url") == "" {
			return NewValidationError("conditions.url", "url is required for url_destination goals")
		}
		mode := cond.Str("match_type")
		if !validMatchTypes[mode] {
			return NewValidationError("conditions.match_type", fmt.Sprintf("unknown match type %q", mode))
		}
	case GoalTypeEvent:
		if cond.Str("event_type") == "" {
			return NewValidationError("conditions.event_type", "event_type is required for event goals")
		}
	case GoalTypePageDuration:
		duration, ok := cond.Num("duration")
		if !ok {
			return NewValidationError("conditions.duration", "duration is required for page_duration goals")
		}
		if duration <= 0 {
			return NewValidationError("conditions.duration", "duration must be positive")
		}
	case GoalTypeClick:
		if cond.Str("href") == "" && cond.Str("text") == "" {
			return NewValidationError("conditions", "click goals need an href or text condition")
		}
		if mode := cond.Str("match_type"); mode != "" && !validMatchTypes[mode] {
			return NewValidationError("conditions.match_type", fmt.Sprintf("unknown match type %q", mode))
		}
	case GoalTypeDownload:
		// All download conditions are optional; none set means any download.
		if mode := cond.Str("match_type"); mode != "" && !validMatchTypes[mode] {
			return NewValidationError("conditions.match_type", fmt.Sprintf("unknown match type %q", mode))
		}
	case GoalTypeFormSubmit:
		// No required conditions.
	}
	return nil
}
