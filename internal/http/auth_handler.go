package http

import (
	"net/http"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"golang.org/x/crypto/bcrypt"

	"goalytics/internal/users"
)

type loginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProcessLoginAction authenticates an admin user and sets the session cookie.
func ProcessLoginAction(ctx *cartridge.Context) error {
	var params loginParams
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if params.Email == "" || params.Password == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Email and password are required"})
	}

	db := ctx.DB()
	user, err := users.FindByEmail(db, params.Email)

	// Always verify a password hash so response timing does not reveal
	// whether the email exists.
	passwordValid := false
	if err != nil {
		ctx.Logger.Debug("User not found during login", slog.String("email", params.Email))
		dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy" // bcrypt hash of "dummy"
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(params.Password))
	} else {
		passwordValid = user.ValidatePassword(params.Password)
		if !passwordValid {
			ctx.Logger.Debug("Invalid password attempt", slog.String("email", params.Email))
		}
	}

	if !passwordValid {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
		ctx.Logger.Error("Failed to set session", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Login failed"})
	}

	ctx.Logger.Info("User logged in", slog.Uint64("user_id", uint64(user.ID)))
	return ctx.JSON(fiber.Map{"ok": true})
}

// LogoutAction clears the session cookie.
func LogoutAction(ctx *cartridge.Context) error {
	ctx.Session.ClearSession(ctx.Ctx)
	return ctx.JSON(fiber.Map{"ok": true})
}
