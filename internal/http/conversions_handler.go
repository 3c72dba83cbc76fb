package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"goalytics/internal/conversions"
	"goalytics/internal/goals"
)

// GoalConversionsAction returns a page of a goal's conversions plus its
// per-day counts. Optional from/to query params (YYYY-MM-DD) bound the range.
func GoalConversionsAction(ctx *cartridge.Context) error {
	goalID, err := pathIDParam(ctx)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid goal id"})
	}

	if _, err := goals.NewGoalStore(ctx.DB(), ctx.Logger).ByID(goalID); err != nil {
		return goalError(ctx, err)
	}

	from, err := parseDateQuery(ctx.Query("from"))
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid from date"})
	}
	to, err := parseDateQuery(ctx.Query("to"))
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid to date"})
	}
	if to != nil {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	store := conversions.NewConversionStore(ctx.DB(), ctx.Logger)
	list, total, err := store.ForGoal(goalID, from, to, limit, offset)
	if err != nil {
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch conversions"})
	}

	daily, err := store.DailyCountsForGoal(goalID, from, to)
	if err != nil {
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to group conversions"})
	}

	return ctx.JSON(fiber.Map{
		"conversions":  list,
		"total":        total,
		"daily_counts": daily,
	})
}

func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	u := t.UTC()
	return &u, nil
}
