package websites

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// WebsiteNotFoundError represents an error when a website is not found
type WebsiteNotFoundError struct {
	Domain string
}

func (e *WebsiteNotFoundError) Error() string {
	return fmt.Sprintf("website not found for domain: %s", e.Domain)
}

// NewWebsiteNotFoundError creates a new WebsiteNotFoundError
func NewWebsiteNotFoundError(domain string) *WebsiteNotFoundError {
	return &WebsiteNotFoundError{Domain: domain}
}

// Website represents a tracked website
type Website struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Domain    string    `gorm:"unique;not null" json:"domain"` // Base domain, e.g., "example.com"
	CreatedAt time.Time `json:"created_at"`
}

// GetWebsiteOrNotFound retrieves a website id by exact domain match.
// It accepts a transaction to be used as part of a larger transaction process.
func GetWebsiteOrNotFound(tx *gorm.DB, host string) (uint, error) {
	var website Website
	if err := tx.Where("domain = ?", host).First(&website).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, NewWebsiteNotFoundError(host)
		}
		return 0, fmt.Errorf("unexpected error querying website: %w", err)
	}
	return website.ID, nil
}

// GetWebsiteByID retrieves a website by its ID
func GetWebsiteByID(db *gorm.DB, id uint) (Website, error) {
	var website Website
	if err := db.First(&website, id).Error; err != nil {
		return Website{}, err
	}
	return website, nil
}

// GetAllWebsites retrieves all websites
func GetAllWebsites(db *gorm.DB) ([]Website, error) {
	var list []Website
	if err := db.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to get websites: %w", err)
	}
	return list, nil
}

// CreateWebsite creates a new website
func CreateWebsite(db *gorm.DB, website *Website) error {
	website.CreatedAt = time.Now().UTC()
	return db.Create(website).Error
}

// DeleteWebsite deletes a website by its ID
func DeleteWebsite(db *gorm.DB, id uint) error {
	result := db.Delete(&Website{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
