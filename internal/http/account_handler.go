package http

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"goalytics/internal/users"
)

// AccountShowAction returns the logged-in admin's account details.
func AccountShowAction(ctx *cartridge.Context) error {
	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}

	user, err := users.FindByID(ctx.DB(), userID)
	if err != nil {
		ctx.Logger.Error("Failed to load account", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	return ctx.JSON(fiber.Map{"id": user.ID, "email": user.Email})
}

// AccountChangePasswordAction changes the logged-in admin's password after
// verifying the current one.
func AccountChangePasswordAction(ctx *cartridge.Context) error {
	var params struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}

	if strings.TrimSpace(params.CurrentPassword) == "" {
		return ctx.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Current password is required"})
	}
	if len(params.NewPassword) < 8 {
		return ctx.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "New password must be at least 8 characters long"})
	}

	db := ctx.DB()
	user, err := users.FindByID(db, userID)
	if err != nil {
		ctx.Logger.Error("Failed to find user for password change", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	if !user.ValidatePassword(params.CurrentPassword) {
		ctx.Logger.Warn("Invalid current password during password change", slog.Uint64("user_id", uint64(userID)))
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Current password is incorrect"})
	}

	if err := users.UpdatePassword(db, user, params.NewPassword); err != nil {
		ctx.Logger.Error("Failed to change password", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to change password"})
	}

	ctx.Logger.Info("Password changed", slog.Uint64("user_id", uint64(userID)))
	return ctx.JSON(fiber.Map{"ok": true})
}
