package http

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"goalytics/internal/settings"
)

// validateIPList validates a comma-separated list of IP addresses
func validateIPList(ipList string) (bool, string) {
	if ipList == "" {
		return true, ""
	}

	for _, ip := range strings.Split(ipList, ",") {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if net.ParseIP(ip) == nil {
			return false, "Invalid IP address format: " + ip
		}
	}

	return true, ""
}

// IngestionSettingsShowAction returns the excluded-IP list consulted at
// ingestion time.
func IngestionSettingsShowAction(ctx *cartridge.Context) error {
	value, err := settings.GetSetting(ctx.DB(), "excluded_ips")
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		ctx.Logger.Error("Failed to read excluded_ips setting", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read settings"})
	}
	return ctx.JSON(fiber.Map{"excluded_ips": value})
}

// IngestionSettingsUpdateAction replaces the excluded-IP list. Events from
// listed IPs are dropped at ingestion without being stored.
func IngestionSettingsUpdateAction(ctx *cartridge.Context) error {
	var params struct {
		ExcludedIPs string `json:"excluded_ips"`
	}
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	if valid, msg := validateIPList(params.ExcludedIPs); !valid {
		ctx.Logger.Warn("Invalid IP format submitted", slog.String("error", msg))
		return ctx.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": msg})
	}

	if err := settings.UpdateSetting(ctx.DB(), "excluded_ips", params.ExcludedIPs); err != nil {
		ctx.Logger.Error("Failed to update excluded_ips setting", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update settings"})
	}

	ctx.Logger.Info("Excluded IPs updated")
	return ctx.JSON(fiber.Map{"excluded_ips": params.ExcludedIPs})
}
