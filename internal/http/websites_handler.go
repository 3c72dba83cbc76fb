package http

import (
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"goalytics/internal/websites"
)

// WebsitesIndexAction lists all registered websites.
func WebsitesIndexAction(ctx *cartridge.Context) error {
	list, err := websites.GetAllWebsites(ctx.DB())
	if err != nil {
		ctx.Logger.Error("Failed to list websites", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list websites"})
	}
	return ctx.JSON(fiber.Map{"websites": list})
}

// WebsiteCreateAction registers a new tracked domain.
func WebsiteCreateAction(ctx *cartridge.Context) error {
	var params struct {
		Domain string `json:"domain"`
	}
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	domain := strings.TrimSpace(strings.ToLower(params.Domain))
	if domain == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "domain is required"})
	}

	website := &websites.Website{Domain: domain}
	if err := websites.CreateWebsite(ctx.DB(), website); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ctx.Status(http.StatusConflict).JSON(fiber.Map{"error": "Domain already registered"})
		}
		ctx.Logger.Error("Failed to create website", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create website"})
	}

	ctx.Logger.Info("Registered website", slog.String("domain", domain))
	return ctx.Status(http.StatusCreated).JSON(website)
}

// WebsiteDeleteAction removes a website registration. Its events, goals and
// stats are kept until retention cleanup ages them out.
func WebsiteDeleteAction(ctx *cartridge.Context) error {
	id, err := pathIDParam(ctx)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid website id"})
	}

	if err := websites.DeleteWebsite(ctx.DB(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Website not found"})
		}
		ctx.Logger.Error("Failed to delete website", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete website"})
	}
	return ctx.SendStatus(http.StatusNoContent)
}
