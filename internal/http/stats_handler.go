package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"goalytics/internal/events"
	"goalytics/internal/stats"
	"goalytics/internal/websites"
)

type aggregateParams struct {
	WebsiteID uint   `json:"website_id"`
	Date      string `json:"date"`
}

// StatsAggregateAction recomputes the daily rollup for one website and day.
// Date defaults to yesterday UTC. Recomputation replaces the stored row, so
// triggering it repeatedly is safe.
func StatsAggregateAction(ctx *cartridge.Context) error {
	var params aggregateParams
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	if _, err := websites.GetWebsiteByID(ctx.DB(), params.WebsiteID); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Unknown website"})
	}

	day := time.Now().UTC().AddDate(0, 0, -1)
	if params.Date != "" {
		parsed, err := time.Parse("2006-01-02", params.Date)
		if err != nil {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date, expected YYYY-MM-DD"})
		}
		day = parsed
	}

	db := ctx.DB()
	aggregator := stats.NewAggregator(
		events.NewEventStore(db, ctx.Logger),
		stats.NewStatStore(db, ctx.Logger),
		ctx.Logger,
	)

	stat, computed, err := aggregator.Aggregate(params.WebsiteID, day)
	if err != nil {
		ctx.Logger.Error("Manual aggregation failed",
			slog.Uint64("website_id", uint64(params.WebsiteID)),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Aggregation failed"})
	}
	if !computed {
		return ctx.JSON(fiber.Map{"computed": false})
	}

	return ctx.JSON(fiber.Map{
		"computed": true,
		"stat":     stat,
	})
}

// StatsShowAction returns the stored rollup for a website and day.
func StatsShowAction(ctx *cartridge.Context) error {
	websiteID, err := pathIDParam(ctx)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid website id"})
	}

	date, err := parseDateQuery(ctx.Query("date"))
	if err != nil || date == nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date, expected YYYY-MM-DD"})
	}

	store := stats.NewStatStore(ctx.DB(), ctx.Logger)
	stat, err := store.ByWebsiteAndDate(websiteID, *date)
	if err != nil {
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch stats"})
	}
	if stat == nil {
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": "No stats for that day"})
	}
	return ctx.JSON(stat)
}
