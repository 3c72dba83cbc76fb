package events

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// EventStore is the capability surface the rest of the pipeline needs from
// event persistence. Implementations must treat events as append-only.
type EventStore interface {
	Insert(event *Event) error
	ForWebsiteBetween(websiteID uint, from, to time.Time) ([]Event, error)
	WebsiteIDsWithEventsBetween(from, to time.Time) ([]uint, error)
	DeleteOlderThan(cutoff time.Time, batchSize int) (int64, error)
}

// GormEventStore persists events through GORM on the shared SQLite database.
type GormEventStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewEventStore creates an EventStore backed by the given database handle.
func NewEventStore(db *gorm.DB, logger *slog.Logger) *GormEventStore {
	return &GormEventStore{db: db, logger: logger}
}

// Insert appends a new event.
func (s *GormEventStore) Insert(event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// ForWebsiteBetween returns all events for a website in [from, to], both ends
// inclusive, ordered by timestamp then id so repeated reads iterate identically.
func (s *GormEventStore) ForWebsiteBetween(websiteID uint, from, to time.Time) ([]Event, error) {
	var list []Event
	err := s.db.
		Where("website_id = ? AND timestamp >= ? AND timestamp <= ?", websiteID, from, to).
		Order("timestamp ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events for website %d: %w", websiteID, err)
	}
	return list, nil
}

// WebsiteIDsWithEventsBetween returns the distinct websites that recorded at
// least one event in the window.
func (s *GormEventStore) WebsiteIDsWithEventsBetween(from, to time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&Event{}).
		Where("timestamp >= ? AND timestamp <= ?", from, to).
		Distinct("website_id").
		Order("website_id ASC").
		Pluck("website_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list websites with events: %w", err)
	}
	return ids, nil
}

// DeleteOlderThan removes events past the retention window in batches to avoid
// holding the write lock for too long. Returns the number of rows deleted.
func (s *GormEventStore) DeleteOlderThan(cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	totalDeleted := int64(0)
	for {
		result := s.db.Where("timestamp < ?", cutoff).
			Limit(batchSize).
			Delete(&Event{})
		if result.Error != nil {
			return totalDeleted, fmt.Errorf("failed to delete expired events: %w", result.Error)
		}

		totalDeleted += result.RowsAffected
		if result.RowsAffected < int64(batchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	return totalDeleted, nil
}
