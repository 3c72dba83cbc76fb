package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "goalytics/api/v1"
	"goalytics/internal/config"
	"goalytics/internal/http"
)

// publicCORSConfig returns the standard CORS configuration for public endpoints.
// All public endpoints share this permissive CORS setup for cross-origin access.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// SetupSession configures session management on the server.
func SetupSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/login",
	})
	srv.SetSession(sessionMgr)
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	SetupSession(srv)

	cfg := config.GetConfig()
	sessionMgr := srv.Session()

	// Rate limiting only applies in production; in development and test it
	// would interfere with exercising the endpoints.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Rate limiter for public event ingestion API (70 requests per minute per IP)
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Stricter rate limiter for auth endpoints to slow brute force attempts
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Public API config (event ingestion). CORS runs first so rejected
	// requests still carry CORS headers.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	adminAPIConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			sessionMgr.Middleware(),
		},
	}

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC API ROUTES ===
	srv.Post("/x/api/v1/events", v1.CreateEventPublicAPIHandler, publicAPIConfig)
	srv.Options("/x/api/v1/events", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)
	srv.Post("/x/api/v1/events/batch", v1.CreateEventBatchHandler, publicAPIConfig)
	srv.Options("/x/api/v1/events/batch", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	// === AUTHENTICATION ROUTES ===
	loginConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{authRateLimiter},
	}
	srv.Post("/login", http.ProcessLoginAction, loginConfig)
	srv.Post("/logout", http.LogoutAction)

	// === PROTECTED ADMIN API ROUTES ===
	srv.Get("/admin/api/websites", http.WebsitesIndexAction, adminAPIConfig)
	srv.Post("/admin/api/websites", http.WebsiteCreateAction, adminAPIConfig)
	srv.Delete("/admin/api/websites/:id", http.WebsiteDeleteAction, adminAPIConfig)

	srv.Get("/admin/api/goals", http.GoalsIndexAction, adminAPIConfig)
	srv.Post("/admin/api/goals", http.GoalCreateAction, adminAPIConfig)
	srv.Post("/admin/api/goals/:id", http.GoalUpdateAction, adminAPIConfig)
	srv.Delete("/admin/api/goals/:id", http.GoalDeleteAction, adminAPIConfig)
	srv.Get("/admin/api/goals/:id/conversions", http.GoalConversionsAction, adminAPIConfig)

	srv.Post("/admin/api/stats/aggregate", http.StatsAggregateAction, adminAPIConfig)
	srv.Get("/admin/api/stats/:id", http.StatsShowAction, adminAPIConfig)

	srv.Get("/admin/api/settings/ingestion", http.IngestionSettingsShowAction, adminAPIConfig)
	srv.Post("/admin/api/settings/ingestion", http.IngestionSettingsUpdateAction, adminAPIConfig)

	srv.Get("/admin/api/account", http.AccountShowAction, adminAPIConfig)
	srv.Post("/admin/api/account/password", http.AccountChangePasswordAction, adminAPIConfig)
}
