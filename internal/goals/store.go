package goals

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// GoalNotFoundError represents an error when a goal is not found
type GoalNotFoundError struct {
	ID uint
}

func (e *GoalNotFoundError) Error() string {
	return fmt.Sprintf("goal not found: %d", e.ID)
}

// NewGoalNotFoundError creates a new GoalNotFoundError
func NewGoalNotFoundError(id uint) *GoalNotFoundError {
	return &GoalNotFoundError{ID: id}
}

// GoalStore is the capability surface for goal persistence. ActiveForWebsite
// must hit the database on every call so live goal edits take effect on the
// next evaluation pass.
type GoalStore interface {
	Create(goal *Goal) error
	Update(goal *Goal) error
	Delete(id uint) error
	ByID(id uint) (*Goal, error)
	ActiveForWebsite(websiteID uint) ([]Goal, error)
	WebsiteIDsWithActiveGoals() ([]uint, error)
}

// GormGoalStore persists goals through GORM.
type GormGoalStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGoalStore creates a GoalStore backed by the given database handle.
func NewGoalStore(db *gorm.DB, logger *slog.Logger) *GormGoalStore {
	return &GormGoalStore{db: db, logger: logger}
}

// Create validates and stores a new goal.
func (s *GormGoalStore) Create(goal *Goal) error {
	if err := Validate(goal); err != nil {
		return err
	}

	now := time.Now().UTC()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		return tx.Create(goal).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// Update validates and saves an existing goal.
func (s *GormGoalStore) Update(goal *Goal) error {
	if err := Validate(goal); err != nil {
		return err
	}

	goal.UpdatedAt = time.Now().UTC()
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.Save(goal)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewGoalNotFoundError(goal.ID)
		}
		return nil
	})
	if err != nil {
		var notFound *GoalNotFoundError
		if errors.As(err, &notFound) {
			return err
		}
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return nil
}

// Delete soft-deletes a goal by id.
func (s *GormGoalStore) Delete(id uint) error {
	return sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.Delete(&Goal{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewGoalNotFoundError(id)
		}
		return nil
	})
}

// ByID retrieves a goal by its id.
func (s *GormGoalStore) ByID(id uint) (*Goal, error) {
	var goal Goal
	if err := s.db.First(&goal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewGoalNotFoundError(id)
		}
		return nil, fmt.Errorf("unexpected error querying goal: %w", err)
	}
	return &goal, nil
}

// ActiveForWebsite returns the active goals for a website in creation order.
func (s *GormGoalStore) ActiveForWebsite(websiteID uint) ([]Goal, error) {
	var list []Goal
	err := s.db.
		Where("website_id = ? AND is_active = ?", websiteID, true).
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active goals for website %d: %w", websiteID, err)
	}
	return list, nil
}

// WebsiteIDsWithActiveGoals returns the distinct websites that have at least
// one active goal. Used by the catch-up sweep to bound its scan.
func (s *GormGoalStore) WebsiteIDsWithActiveGoals() ([]uint, error) {
	var ids []uint
	err := s.db.Model(&Goal{}).
		Where("is_active = ?", true).
		Distinct("website_id").
		Order("website_id ASC").
		Pluck("website_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list websites with active goals: %w", err)
	}
	return ids, nil
}
