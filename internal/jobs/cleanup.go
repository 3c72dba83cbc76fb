package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"goalytics/internal/config"
	"goalytics/internal/events"
)

// CleanupJob removes raw events past the retention window. Daily stats and
// conversions are kept; only the raw event rows age out.
type CleanupJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run deletes events older than the configured retention period.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.EventRetentionDays
	cutoffDate := time.Now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting cleanup of expired events",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	eventStore := events.NewEventStore(j.dbManager.GetConnection(), j.logger)
	deleted, err := eventStore.DeleteOlderThan(cutoffDate, 1000)
	if err != nil {
		j.logger.Error("Failed to delete expired events",
			slog.Any("error", err),
			slog.Int64("deleted_so_far", deleted))
		return err
	}

	j.logger.Info("Cleaned up expired events",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", retentionDays))
	return nil
}
