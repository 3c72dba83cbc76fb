// Package v1_test contains tests for the API v1 handlers
package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"goalytics/internal"
	"goalytics/internal/config"
	"goalytics/internal/events"
	"goalytics/internal/goals"
	"goalytics/internal/testsupport"
)

// createTestApp builds a fiber app with the application routes mounted on a
// test database, for exercising handlers end to end.
func createTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = testsupport.GetLogger()
	cfg.DBManager = testsupport.NewTestDBManager(db)

	// Enable SecFetchSite validation in tests to match production behavior
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}

func postJSON(t *testing.T, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Test-Agent")
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	req.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestCreateEventPublicAPIHandler(t *testing.T) {
	t.Run("accepts valid event", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CreateTestWebsite(db, "example.com")
		app := createTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events", map[string]any{
			"url":        "https://example.com/pricing",
			"event_type": "page_view",
			"session_id": "session-1",
			"timestamp":  time.Now().UTC(),
			"device":     map[string]any{"type": "desktop", "os": "linux", "browser": "chrome"},
		})

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		respBody := decodeBody(t, resp)
		assert.Equal(t, true, respBody["recorded"])

		var count int64
		require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("reports matched goals", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		website := testsupport.CreateTestWebsite(db, "example.com")
		testsupport.CreateTestGoal(t, db, website.ID, "thanks page", goals.GoalTypeURLDestination,
			goals.Conditions{"url": "/thanks", "match_type": "contains"})
		app := createTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events", map[string]any{
			"url":        "https://example.com/thanks",
			"event_type": "page_view",
			"session_id": "session-1",
		})

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		respBody := decodeBody(t, resp)
		assert.Equal(t, []any{"thanks page"}, respBody["matched_goals"])
	})

	t.Run("rejects unregistered website", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		app := createTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events", map[string]any{
			"url":        "https://unregistered.com/page",
			"event_type": "page_view",
			"session_id": "session-1",
		})

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		respBody := decodeBody(t, resp)
		assert.Equal(t, "WEBSITE_NOT_FOUND", respBody["code"])
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		app := createTestApp(t, db)

		req := httptest.NewRequest("POST", "/x/api/v1/events", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Sec-Fetch-Site", "cross-site")

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects requests without sec-fetch-site header", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CreateTestWebsite(db, "example.com")
		app := createTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events", map[string]any{
			"url":        "https://example.com/pricing",
			"event_type": "page_view",
			"session_id": "session-1",
		})
		req.Header.Del("Sec-Fetch-Site")

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestCreateEventBatchHandler(t *testing.T) {
	t.Run("processes items independently", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CreateTestWebsite(db, "example.com")
		app := createTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events/batch", map[string]any{
			"events": []map[string]any{
				{"url": "https://example.com/a", "event_type": "page_view", "session_id": "s1"},
				{"url": "https://unregistered.com/x", "event_type": "page_view", "session_id": "s1"},
				{"url": "https://example.com/b", "event_type": "page_view", "session_id": "s1"},
			},
		})

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		respBody := decodeBody(t, resp)
		assert.Equal(t, float64(2), respBody["processed"])
		failed, ok := respBody["failed"].([]any)
		require.True(t, ok)
		require.Len(t, failed, 1)

		var count int64
		require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		app := createTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events/batch", map[string]any{"events": []map[string]any{}})
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
