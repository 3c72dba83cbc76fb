package conversions

import (
	"log/slog"
	"strconv"
	"time"

	"goalytics/internal/events"
	"goalytics/internal/goals"
)

// ActorMeta carries the request-level metadata stored alongside a conversion.
// Empty fields are fine for sweep-recorded conversions, where the original
// request context is gone.
type ActorMeta struct {
	UserAgent string
	IPAddress string
	Referrer  string
}

// RecordResult reports whether a conversion was newly persisted.
type RecordResult struct {
	Recorded   bool
	Conversion *Conversion
}

// Recorder writes conversions at most once per (goal, session, event).
type Recorder struct {
	store  ConversionStore
	logger *slog.Logger
}

// NewRecorder creates a Recorder on top of a ConversionStore.
func NewRecorder(store ConversionStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// RecordIfNew persists a conversion for the goal/event pair unless one
// already exists for the (goal, session, event) triple. The existence check
// is an optimization; the store's uniqueness constraint is the final
// authority, so a concurrent duplicate insert comes back as Recorded=false
// rather than an error.
func (r *Recorder) RecordIfNew(goal *goals.Goal, event *events.Event, meta ActorMeta) (RecordResult, error) {
	exists, err := r.store.Exists(goal.ID, event.SessionID, event.ID)
	if err != nil {
		return RecordResult{}, err
	}
	if exists {
		return RecordResult{Recorded: false}, nil
	}

	conversion := &Conversion{
		GoalID:      goal.ID,
		WebsiteID:   event.WebsiteID,
		SessionID:   event.SessionID,
		EventID:     event.ID,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		Referrer:    meta.Referrer,
		PageURL:     event.URL,
		Value:       conversionValue(goal, event),
		CustomData:  event.CustomData,
		ConvertedAt: event.Timestamp,
	}
	if conversion.ConvertedAt.IsZero() {
		conversion.ConvertedAt = time.Now().UTC()
	}

	inserted, err := r.store.Insert(conversion)
	if err != nil {
		return RecordResult{}, err
	}
	if !inserted {
		// Lost the race against another writer; the triple is recorded.
		return RecordResult{Recorded: false}, nil
	}

	r.logger.Info("Recorded conversion",
		slog.Uint64("goal_id", uint64(goal.ID)),
		slog.Uint64("event_id", uint64(event.ID)),
		slog.String("session_id", event.SessionID))
	return RecordResult{Recorded: true, Conversion: conversion}, nil
}

// conversionValue prefers an explicit value on the event's custom data and
// falls back to the goal's configured value.
func conversionValue(goal *goals.Goal, event *events.Event) float64 {
	if raw, ok := event.CustomDataMap()["value"]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return goal.Value
}
