package goals

import (
	"log/slog"
	"strings"

	"goalytics/internal/events"
)

// evaluatorFunc decides whether a single goal's conditions match an event.
// Evaluators must be pure: no mutation of the goal, conditions, or event.
type evaluatorFunc func(m *Matcher, cond Conditions, event *events.Event) bool

// evaluators dispatches by goal type. One entry per type keeps each strategy
// independently testable and extendable without touching the others.
var evaluators = map[GoalType]evaluatorFunc{
	GoalTypeURLDestination: evaluateURLDestination,
	GoalTypeEvent:          evaluateEvent,
	GoalTypePageDuration:   evaluatePageDuration,
	GoalTypeClick:          evaluateClick,
	GoalTypeDownload:       evaluateDownload,
	GoalTypeFormSubmit:     evaluateFormSubmit,
}

// Matcher evaluates goal conditions against events. It is safe for
// concurrent use; the only shared state is the compiled-regex cache.
type Matcher struct {
	regexes *regexCache
	logger  *slog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{
		regexes: newRegexCache(),
		logger:  logger,
	}
}

// Evaluate reports whether the event satisfies the goal's conditions.
// Unknown goal types and malformed conditions evaluate to false, never to an
// error: a broken goal must not take down an evaluation pass.
func (m *Matcher) Evaluate(goal *Goal, event *events.Event) bool {
	evaluate, ok := evaluators[goal.GoalType]
	if !ok {
		m.logger.Warn("Unknown goal type, treating as non-matching",
			slog.Uint64("goal_id", uint64(goal.ID)),
			slog.String("goal_type", string(goal.GoalType)))
		return false
	}
	return evaluate(m, goal.ConditionsMap(), event)
}

// EvaluateAll returns the active goals the event matches, preserving the
// order the goals were given in (no implied priority).
func (m *Matcher) EvaluateAll(goals []Goal, event *events.Event) []Goal {
	var matched []Goal
	for i := range goals {
		if !goals[i].IsActive {
			continue
		}
		if m.Evaluate(&goals[i], event) {
			matched = append(matched, goals[i])
		}
	}
	return matched
}

// matchString compares value against pattern using the named mode. foldCase
// applies to exact and contains comparisons only; regex patterns control
// their own case sensitivity.
func (m *Matcher) matchString(mode, pattern, value string, foldCase bool) bool {
	switch mode {
	case MatchExact:
		if foldCase {
			return strings.EqualFold(pattern, value)
		}
		return pattern == value
	case MatchContains:
		if foldCase {
			return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
		}
		return strings.Contains(value, pattern)
	case MatchRegex:
		regex, err := m.regexes.get(pattern)
		if err != nil {
			m.logger.Warn("Failed to compile goal condition pattern",
				slog.String("pattern", pattern),
				slog.Any("error", err))
			return false
		}
		return regex.MatchString(value)
	default:
		return false
	}
}

func evaluateURLDestination(m *Matcher, cond Conditions, event *events.Event) bool {
	url := cond.Str("url")
	mode := cond.Str("match_type")
	if url == "" || mode == "" {
		return false
	}
	return m.matchString(mode, url, event.URL, false)
}

func evaluateEvent(m *Matcher, cond Conditions, event *events.Event) bool {
	eventType := cond.Str("event_type")
	if eventType == "" || string(event.EventType) != eventType {
		return false
	}

	// Optional custom_data conditions: every expected key must be present
	// and equal on the event.
	expected := cond.StrMap("custom_data")
	if len(expected) == 0 {
		return true
	}
	actual := event.CustomDataMap()
	for key, want := range expected {
		if actual[key] != want {
			return false
		}
	}
	return true
}

func evaluatePageDuration(m *Matcher, cond Conditions, event *events.Event) bool {
	duration, ok := cond.Num("duration")
	if !ok {
		return false
	}
	return float64(event.DurationSeconds) >= duration
}

func evaluateClick(m *Matcher, cond Conditions, event *events.Event) bool {
	if event.EventType != events.EventTypeClick {
		return false
	}

	href := cond.Str("href")
	text := cond.Str("text")
	if href == "" && text == "" {
		return false
	}

	mode := cond.Str("match_type")
	if mode == "" {
		mode = MatchContains
	}

	data := event.CustomDataMap()
	if href != "" && !m.matchString(mode, href, data["href"], false) {
		return false
	}
	// Link text comparisons are case-insensitive
	if text != "" && !m.matchString(mode, text, data["text"], true) {
		return false
	}
	return true
}

func evaluateDownload(m *Matcher, cond Conditions, event *events.Event) bool {
	if event.EventType != events.EventTypeDownload {
		return false
	}

	fileURL := cond.Str("fileUrl")
	fileName := cond.Str("fileName")
	fileType := cond.Str("fileType")

	// No conditions set: any download converts.
	if fileURL == "" && fileName == "" && fileType == "" {
		return true
	}

	mode := cond.Str("match_type")
	if mode == "" {
		mode = MatchContains
	}

	// Sub-conditions are OR'd: one hit is enough.
	data := event.CustomDataMap()
	if fileURL != "" && m.matchString(mode, fileURL, data["fileUrl"], false) {
		return true
	}
	if fileName != "" && m.matchString(mode, fileName, data["fileName"], false) {
		return true
	}
	// File type comparison is always exact, case-insensitive
	if fileType != "" && strings.EqualFold(fileType, data["fileType"]) {
		return true
	}
	return false
}

func evaluateFormSubmit(m *Matcher, cond Conditions, event *events.Event) bool {
	if event.EventType != events.EventTypeFormSubmit {
		return false
	}

	expected := cond.StrMap("custom_data")
	if len(expected) == 0 {
		return true
	}
	actual := event.CustomDataMap()
	for key, want := range expected {
		if actual[key] != want {
			return false
		}
	}
	return true
}
