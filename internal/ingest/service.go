package ingest

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/karloscodes/cartridge"

	"goalytics/internal/config"
	"goalytics/internal/conversions"
	"goalytics/internal/events"
	"goalytics/internal/goals"
	"goalytics/internal/sessions"
	"goalytics/internal/settings"
	"goalytics/internal/websites"
)

// CollectInput is one incoming tracking event, as sent by a tracker script
// plus the request-level metadata the handler extracts.
type CollectInput struct {
	URL             string
	Referrer        string
	EventType       events.EventType
	SessionID       string
	UserID          string
	DurationSeconds int
	DeviceType      string
	OS              string
	Browser         string
	CustomData      map[string]any
	Timestamp       time.Time
	UserAgent       string
	IPAddress       string
}

// Result reports what a single collect did. Dropped means the event was
// intentionally discarded (excluded IP) and nothing was stored.
type Result struct {
	Event        *events.Event
	MatchedGoals []string
	Dropped      bool
}

// Service runs the ingestion pipeline: resolve the website, persist the
// event, then evaluate the website's active goals and record conversions.
type Service struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	events    events.EventStore
	goals     goals.GoalStore
	matcher   *goals.Matcher
	recorder  *conversions.Recorder
}

// NewService wires a Service on top of the shared database connection.
func NewService(dbManager cartridge.DBManager, logger *slog.Logger) *Service {
	db := dbManager.GetConnection()
	return &Service{
		dbManager: dbManager,
		logger:    logger,
		events:    events.NewEventStore(db, logger),
		goals:     goals.NewGoalStore(db, logger),
		matcher:   goals.NewMatcher(logger),
		recorder:  conversions.NewRecorder(conversions.NewConversionStore(db, logger), logger),
	}
}

// Collect persists one event and records conversions for every active goal
// it matches. Goal evaluation failures are logged and swallowed: a broken
// goal must never lose the event.
func (s *Service) Collect(input *CollectInput) (*Result, error) {
	if input.URL == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	parsedURL, err := url.Parse(input.URL)
	if err != nil || parsedURL.Hostname() == "" {
		return nil, fmt.Errorf("invalid URL: %s", input.URL)
	}

	excluded, err := settings.IsIPExcluded(input.IPAddress)
	if err != nil {
		s.logger.Error("Error checking IP exclusion", slog.Any("error", err))
	} else if excluded {
		s.logger.Debug("Skipping event for excluded IP", slog.String("ip", input.IPAddress))
		return &Result{Dropped: true}, nil
	}

	db := s.dbManager.GetConnection()
	websiteID, err := websites.GetWebsiteOrNotFound(db, parsedURL.Hostname())
	if err != nil {
		return nil, err
	}

	event, err := s.buildEvent(websiteID, parsedURL.Hostname(), input)
	if err != nil {
		return nil, err
	}
	if err := s.events.Insert(event); err != nil {
		return nil, err
	}

	matched := s.recordConversions(websiteID, event, input)
	return &Result{Event: event, MatchedGoals: matched}, nil
}

// BatchFailure identifies one rejected item of a batch by its position.
type BatchFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult summarizes a batch collect. Items are independent: a failed
// item never rolls back its siblings.
type BatchResult struct {
	Processed int            `json:"processed"`
	Failed    []BatchFailure `json:"failed"`
}

// CollectBatch processes each input in order, collecting per-item failures
// instead of aborting.
func (s *Service) CollectBatch(inputs []CollectInput) *BatchResult {
	result := &BatchResult{Failed: []BatchFailure{}}
	for i := range inputs {
		if _, err := s.Collect(&inputs[i]); err != nil {
			s.logger.Warn("Batch item failed",
				slog.Int("index", i),
				slog.Any("error", err))
			result.Failed = append(result.Failed, BatchFailure{Index: i, Error: err.Error()})
			continue
		}
		result.Processed++
	}
	return result
}

func (s *Service) buildEvent(websiteID uint, hostname string, input *CollectInput) (*events.Event, error) {
	eventType := input.EventType
	if eventType == "" {
		eventType = events.EventTypePageView
	}
	if !events.ValidEventType(eventType) {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	sessionID := input.SessionID
	if sessionID == "" {
		cfg := config.GetConfig()
		sessionID = sessions.FallbackSessionID(hostname, input.IPAddress, input.UserAgent, cfg.GetSessionSecret())
	}

	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	customData := ""
	if len(input.CustomData) > 0 {
		encoded, err := events.EncodeCustomData(input.CustomData)
		if err != nil {
			return nil, fmt.Errorf("invalid custom data: %w", err)
		}
		customData = encoded
	}

	return &events.Event{
		WebsiteID:       websiteID,
		EventType:       eventType,
		URL:             input.URL,
		Referrer:        input.Referrer,
		SessionID:       sessionID,
		UserID:          input.UserID,
		DurationSeconds: input.DurationSeconds,
		DeviceType:      input.DeviceType,
		OS:              input.OS,
		Browser:         input.Browser,
		CustomData:      customData,
		Timestamp:       timestamp,
	}, nil
}

// recordConversions evaluates the website's active goals against the stored
// event. Goals are fetched fresh on every call so edits apply immediately.
func (s *Service) recordConversions(websiteID uint, event *events.Event, input *CollectInput) []string {
	activeGoals, err := s.goals.ActiveForWebsite(websiteID)
	if err != nil {
		s.logger.Error("Failed to load goals for event",
			slog.Uint64("website_id", uint64(websiteID)),
			slog.Any("error", err))
		return nil
	}

	meta := conversions.ActorMeta{
		UserAgent: input.UserAgent,
		IPAddress: input.IPAddress,
		Referrer:  input.Referrer,
	}

	var matched []string
	for _, goal := range s.matcher.EvaluateAll(activeGoals, event) {
		if _, err := s.recorder.RecordIfNew(&goal, event, meta); err != nil {
			s.logger.Error("Failed to record conversion",
				slog.Uint64("goal_id", uint64(goal.ID)),
				slog.Any("error", err))
			continue
		}
		matched = append(matched, goal.Name)
	}
	return matched
}
