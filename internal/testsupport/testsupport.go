package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"goalytics/internal/conversions"
	"goalytics/internal/events"
	"goalytics/internal/goals"
	"goalytics/internal/settings"
	"goalytics/internal/stats"
	"goalytics/internal/users"
	"goalytics/internal/websites"
)

// SessionCookieName is the expected cookie name for session cookies in tests.
// This should match the pattern used in routes.go: cfg.AppName + "_session"
const SessionCookieName = "goalytics_session"

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with goalytics' interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns all goalytics models for migration
func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&events.Event{},
		&goals.Goal{},
		&conversions.Conversion{},
		&stats.DailyStat{},
		&users.User{},
		&settings.Setting{},
		&websites.Website{},
	}
}

// SetupTestDB creates a test database with all goalytics models migrated.
// Uses a named in-memory database with cache=shared to allow multiple
// connections to share the same database within a test. Caches the database
// by test name so multiple calls within the same test return the same one.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	db := SetupTestDB(t)
	logger := GetLogger()
	dbManager := NewTestDBManager(db)

	return dbManager, logger
}

// SetupTestDBManagerWithWebsite creates a test database manager with a test website
func SetupTestDBManagerWithWebsite(t *testing.T, domain string) (*TestDBManager, *slog.Logger, websites.Website) {
	dbManager, logger := SetupTestDBManager(t)
	website := CreateTestWebsite(dbManager.GetConnection(), domain)
	return dbManager, logger, website
}

// CreateTestWebsite creates a test website in the database
func CreateTestWebsite(db *gorm.DB, domain string) websites.Website {
	var website websites.Website
	if db.Where("domain = ?", domain).First(&website).Error != nil {
		website = websites.Website{Domain: domain, CreatedAt: time.Now().UTC()}
		db.Create(&website)
	}
	return website
}

// CreateTestGoal creates and stores an active goal for a website
func CreateTestGoal(t *testing.T, db *gorm.DB, websiteID uint, name string, goalType goals.GoalType, cond goals.Conditions) *goals.Goal {
	t.Helper()

	conditions, err := goals.EncodeConditions(cond)
	require.NoError(t, err)

	goal := &goals.Goal{
		WebsiteID:  websiteID,
		Name:       name,
		GoalType:   goalType,
		Conditions: conditions,
		IsActive:   true,
	}
	store := goals.NewGoalStore(db, GetLogger())
	require.NoError(t, store.Create(goal))
	return goal
}

// CreateTestEvent stores an event with sensible defaults for testing
func CreateTestEvent(t *testing.T, db *gorm.DB, websiteID uint, eventType events.EventType, url, sessionID string, timestamp time.Time) *events.Event {
	t.Helper()

	event := &events.Event{
		WebsiteID:  websiteID,
		EventType:  eventType,
		URL:        url,
		SessionID:  sessionID,
		DeviceType: "desktop",
		Browser:    "chrome",
		OS:         "linux",
		Timestamp:  timestamp,
	}
	store := events.NewEventStore(db, GetLogger())
	require.NoError(t, store.Insert(event))
	return event
}

// CreateTestUserForAuth creates a user with properly hashed password for auth testing
func CreateTestUserForAuth(t *testing.T, db *gorm.DB, email, password string) *users.User {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := &users.User{
		Email:             email,
		EncryptedPassword: string(hashedPassword),
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}
