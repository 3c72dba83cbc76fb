package http

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"goalytics/internal/goals"
	"goalytics/internal/websites"
)

type goalParams struct {
	WebsiteID  uint             `json:"website_id"`
	Name       string           `json:"name"`
	GoalType   goals.GoalType   `json:"goal_type"`
	Conditions goals.Conditions `json:"conditions"`
	Value      float64          `json:"value"`
	IsActive   *bool            `json:"is_active"`
}

// GoalsIndexAction lists goals for a website, newest first.
func GoalsIndexAction(ctx *cartridge.Context) error {
	websiteID, err := strconv.ParseUint(ctx.Query("website_id"), 10, 32)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "website_id is required"})
	}

	var list []goals.Goal
	if err := ctx.DB().Where("website_id = ?", uint(websiteID)).Order("id DESC").Find(&list).Error; err != nil {
		ctx.Logger.Error("Failed to list goals", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list goals"})
	}
	return ctx.JSON(fiber.Map{"goals": list})
}

// GoalCreateAction creates a goal from a JSON payload.
func GoalCreateAction(ctx *cartridge.Context) error {
	var params goalParams
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	if _, err := websites.GetWebsiteByID(ctx.DB(), params.WebsiteID); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Unknown website"})
	}

	conditions, err := goals.EncodeConditions(params.Conditions)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	goal := &goals.Goal{
		WebsiteID:  params.WebsiteID,
		Name:       params.Name,
		GoalType:   params.GoalType,
		Conditions: conditions,
		Value:      params.Value,
		IsActive:   true,
	}
	if params.IsActive != nil {
		goal.IsActive = *params.IsActive
	}

	store := goals.NewGoalStore(ctx.DB(), ctx.Logger)
	if err := store.Create(goal); err != nil {
		var validationErr *goals.ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": validationErr.Error()})
		}
		ctx.Logger.Error("Failed to create goal", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create goal"})
	}

	ctx.Logger.Info("Created goal",
		slog.Uint64("goal_id", uint64(goal.ID)),
		slog.String("name", goal.Name))
	return ctx.Status(http.StatusCreated).JSON(goal)
}

// GoalUpdateAction updates an existing goal in place.
func GoalUpdateAction(ctx *cartridge.Context) error {
	id, err := pathIDParam(ctx)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid goal id"})
	}

	store := goals.NewGoalStore(ctx.DB(), ctx.Logger)
	goal, err := store.ByID(id)
	if err != nil {
		return goalError(ctx, err)
	}

	var params goalParams
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	if params.Name != "" {
		goal.Name = params.Name
	}
	if params.GoalType != "" {
		goal.GoalType = params.GoalType
	}
	if params.Conditions != nil {
		conditions, err := goals.EncodeConditions(params.Conditions)
		if err != nil {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		goal.Conditions = conditions
	}
	if params.Value != 0 {
		goal.Value = params.Value
	}
	if params.IsActive != nil {
		goal.IsActive = *params.IsActive
	}

	if err := store.Update(goal); err != nil {
		var validationErr *goals.ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": validationErr.Error()})
		}
		return goalError(ctx, err)
	}

	return ctx.JSON(goal)
}

// GoalDeleteAction soft-deletes a goal. Its conversions are kept.
func GoalDeleteAction(ctx *cartridge.Context) error {
	id, err := pathIDParam(ctx)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid goal id"})
	}

	store := goals.NewGoalStore(ctx.DB(), ctx.Logger)
	if err := store.Delete(id); err != nil {
		return goalError(ctx, err)
	}

	ctx.Logger.Info("Deleted goal", slog.Uint64("goal_id", uint64(id)))
	return ctx.SendStatus(http.StatusNoContent)
}

func pathIDParam(ctx *cartridge.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func goalError(ctx *cartridge.Context, err error) error {
	var notFound *goals.GoalNotFoundError
	if errors.As(err, &notFound) {
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Goal not found"})
	}
	ctx.Logger.Error("Goal operation failed", slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Goal operation failed"})
}
