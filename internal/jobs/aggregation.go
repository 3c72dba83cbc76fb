package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"goalytics/internal/config"
	"goalytics/internal/conversions"
	"goalytics/internal/events"
	"goalytics/internal/goals"
	"goalytics/internal/stats"
)

// AggregationJob rolls up the previous day's events into daily stats and
// sweeps the recent event window for conversions missed at ingestion time.
type AggregationJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewAggregationJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *AggregationJob {
	return &AggregationJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run aggregates yesterday (UTC) for every website that had events, then
// runs the conversion catch-up sweep. Per-website failures are logged and
// the remaining websites still get processed.
func (j *AggregationJob) Run() error {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	if err := j.RunForDay(yesterday); err != nil {
		return err
	}
	return j.sweepConversions()
}

// RunForDay aggregates a single UTC day across all websites with events.
func (j *AggregationJob) RunForDay(day time.Time) error {
	db := j.dbManager.GetConnection()
	eventStore := events.NewEventStore(db, j.logger)
	statStore := stats.NewStatStore(db, j.logger)
	aggregator := stats.NewAggregator(eventStore, statStore, j.logger)

	dayStart := stats.DayStart(day)
	websiteIDs, err := eventStore.WebsiteIDsWithEventsBetween(dayStart, stats.DayEnd(day))
	if err != nil {
		return err
	}

	j.logger.Info("Starting daily aggregation",
		slog.Time("day", dayStart),
		slog.Int("websites", len(websiteIDs)))

	failures := 0
	for _, websiteID := range websiteIDs {
		if _, _, err := aggregator.Aggregate(websiteID, dayStart); err != nil {
			j.logger.Error("Failed to aggregate website",
				slog.Uint64("website_id", uint64(websiteID)),
				slog.Time("day", dayStart),
				slog.Any("error", err))
			failures++
		}
	}

	j.logger.Info("Daily aggregation finished",
		slog.Time("day", dayStart),
		slog.Int("websites", len(websiteIDs)),
		slog.Int("failures", failures))
	return nil
}

// sweepConversions re-evaluates active goals against events from the recent
// lookback window. Conversions already recorded at ingestion are skipped by
// the recorder's dedup, so the sweep only fills gaps, for example goals
// created after their matching events arrived.
func (j *AggregationJob) sweepConversions() error {
	db := j.dbManager.GetConnection()
	eventStore := events.NewEventStore(db, j.logger)
	goalStore := goals.NewGoalStore(db, j.logger)
	matcher := goals.NewMatcher(j.logger)
	recorder := conversions.NewRecorder(conversions.NewConversionStore(db, j.logger), j.logger)

	to := time.Now().UTC()
	from := to.Add(-time.Duration(j.cfg.SweepLookbackHours) * time.Hour)

	websiteIDs, err := goalStore.WebsiteIDsWithActiveGoals()
	if err != nil {
		return err
	}

	recorded := 0
	for _, websiteID := range websiteIDs {
		activeGoals, err := goalStore.ActiveForWebsite(websiteID)
		if err != nil {
			j.logger.Error("Failed to load goals for sweep",
				slog.Uint64("website_id", uint64(websiteID)),
				slog.Any("error", err))
			continue
		}

		windowEvents, err := eventStore.ForWebsiteBetween(websiteID, from, to)
		if err != nil {
			j.logger.Error("Failed to load events for sweep",
				slog.Uint64("website_id", uint64(websiteID)),
				slog.Any("error", err))
			continue
		}

		for i := range windowEvents {
			event := &windowEvents[i]
			for _, goal := range matcher.EvaluateAll(activeGoals, event) {
				result, err := recorder.RecordIfNew(&goal, event, conversions.ActorMeta{})
				if err != nil {
					j.logger.Error("Failed to record sweep conversion",
						slog.Uint64("goal_id", uint64(goal.ID)),
						slog.Uint64("event_id", uint64(event.ID)),
						slog.Any("error", err))
					continue
				}
				if result.Recorded {
					recorded++
				}
			}
		}
	}

	j.logger.Info("Conversion sweep finished",
		slog.Int("lookback_hours", j.cfg.SweepLookbackHours),
		slog.Int("recorded", recorded))
	return nil
}
