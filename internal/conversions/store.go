package conversions

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ConversionStore is the capability surface for conversion persistence.
// Conversions are insert-only.
type ConversionStore interface {
	// Insert stores a conversion, reporting inserted=false when the
	// (goal, session, event) triple already exists. A duplicate is not
	// an error: the uniqueness constraint doing its job is success.
	Insert(conversion *Conversion) (inserted bool, err error)
	Exists(goalID uint, sessionID string, eventID uint) (bool, error)
	ForGoal(goalID uint, from, to *time.Time, limit, offset int) ([]Conversion, int64, error)
	DailyCountsForGoal(goalID uint, from, to *time.Time) ([]DailyCount, error)
}

// GormConversionStore persists conversions through GORM.
type GormConversionStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewConversionStore creates a ConversionStore backed by the given database handle.
func NewConversionStore(db *gorm.DB, logger *slog.Logger) *GormConversionStore {
	return &GormConversionStore{db: db, logger: logger}
}

// Insert appends a conversion. The write goes through the serialized write
// path; a unique-constraint violation is swallowed and reported as a no-op.
func (s *GormConversionStore) Insert(conversion *Conversion) (bool, error) {
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		return tx.Create(conversion).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			s.logger.Debug("Conversion already recorded, skipping",
				slog.Uint64("goal_id", uint64(conversion.GoalID)),
				slog.String("session_id", conversion.SessionID),
				slog.Uint64("event_id", uint64(conversion.EventID)))
			return false, nil
		}
		return false, fmt.Errorf("failed to store conversion: %w", err)
	}
	return true, nil
}

// Exists checks for a conversion with the given dedupe triple.
func (s *GormConversionStore) Exists(goalID uint, sessionID string, eventID uint) (bool, error) {
	var count int64
	err := s.db.Model(&Conversion{}).
		Where("goal_id = ? AND session_id = ? AND event_id = ?", goalID, sessionID, eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check for existing conversion: %w", err)
	}
	return count > 0, nil
}

// ForGoal returns a page of conversions for a goal, newest first, along with
// the total count for pagination. from/to bound converted_at when given.
func (s *GormConversionStore) ForGoal(goalID uint, from, to *time.Time, limit, offset int) ([]Conversion, int64, error) {
	query := s.db.Model(&Conversion{}).Where("goal_id = ?", goalID)
	if from != nil {
		query = query.Where("converted_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("converted_at <= ?", *to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count conversions: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	var list []Conversion
	err := query.Order("converted_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch conversions: %w", err)
	}
	return list, total, nil
}

// DailyCountsForGoal groups a goal's conversions by UTC calendar day.
func (s *GormConversionStore) DailyCountsForGoal(goalID uint, from, to *time.Time) ([]DailyCount, error) {
	query := s.db.Model(&Conversion{}).
		Select("strftime('%Y-%m-%d', converted_at) AS date, COUNT(*) AS count").
		Where("goal_id = ?", goalID)
	if from != nil {
		query = query.Where("converted_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("converted_at <= ?", *to)
	}

	var results []DailyCount
	err := query.Group("date").Order("date ASC").Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group conversions by day: %w", err)
	}
	return results, nil
}

// isUniqueViolation reports whether err comes from the conversions dedupe
// constraint. GORM only translates to ErrDuplicatedKey when error translation
// is enabled, so the SQLite message is sniffed as well.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
