package stats

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// StatStore is the capability surface for daily rollup persistence.
type StatStore interface {
	// Upsert stores the rollup for (website_id, date), replacing every
	// field of any existing row. Never additive.
	Upsert(stat *DailyStat) error
	ByWebsiteAndDate(websiteID uint, date time.Time) (*DailyStat, error)
}

// GormStatStore persists daily stats through GORM.
type GormStatStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStatStore creates a StatStore backed by the given database handle.
func NewStatStore(db *gorm.DB, logger *slog.Logger) *GormStatStore {
	return &GormStatStore{db: db, logger: logger}
}

// Upsert writes the rollup with full field replacement on conflict.
func (s *GormStatStore) Upsert(stat *DailyStat) error {
	stat.Date = DayStart(stat.Date)
	now := time.Now().UTC()

	query := `
		INSERT INTO daily_stats (website_id, date, total_visits, unique_visitors, page_views,
			avg_duration, bounce_rate, top_page, top_referrer, device_stats, browser_stats,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (website_id, date) DO UPDATE SET
			total_visits = ?,
			unique_visitors = ?,
			page_views = ?,
			avg_duration = ?,
			bounce_rate = ?,
			top_page = ?,
			top_referrer = ?,
			device_stats = ?,
			browser_stats = ?,
			updated_at = ?
	`
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		return tx.Exec(query,
			stat.WebsiteID, stat.Date, stat.TotalVisits, stat.UniqueVisitors, stat.PageViews,
			stat.AvgDuration, stat.BounceRate, stat.TopPage, stat.TopReferrer,
			stat.DeviceStats, stat.BrowserStats, now, now,
			stat.TotalVisits, stat.UniqueVisitors, stat.PageViews,
			stat.AvgDuration, stat.BounceRate, stat.TopPage, stat.TopReferrer,
			stat.DeviceStats, stat.BrowserStats, now,
		).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert daily stat: %w", err)
	}
	return nil
}

// ByWebsiteAndDate fetches the rollup for one website and day, or nil when
// none has been computed.
func (s *GormStatStore) ByWebsiteAndDate(websiteID uint, date time.Time) (*DailyStat, error) {
	var stat DailyStat
	err := s.db.
		Where("website_id = ? AND date = ?", websiteID, DayStart(date)).
		First(&stat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch daily stat: %w", err)
	}
	return &stat, nil
}
