package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"goalytics/internal/events"
	"goalytics/internal/ingest"
	"goalytics/internal/websites"
)

const (
	errInvalidRequest = "Invalid request"
	maxBatchSize      = 100
)

// DeviceParams carries the client hints the tracker script collects.
type DeviceParams struct {
	Type    string `json:"type"`
	OS      string `json:"os"`
	Browser string `json:"browser"`
}

type CreateEventParams struct {
	URL             string         `json:"url"`
	Referrer        string         `json:"referrer"`
	EventType       string         `json:"event_type"`
	SessionID       string         `json:"session_id"`
	UserID          string         `json:"user_id"`
	DurationSeconds int            `json:"duration_seconds"`
	Device          DeviceParams   `json:"device"`
	CustomData      map[string]any `json:"custom_data"`
	Timestamp       time.Time      `json:"timestamp"`
}

// CreateEventPublicAPIHandler ingests a single tracking event and reports
// which goals it converted.
func CreateEventPublicAPIHandler(ctx *cartridge.Context) error {
	ctx.Logger.Debug("Received event request", slog.String("method", ctx.Method()), slog.String("path", ctx.Path()))

	var params CreateEventParams
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse event request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}

	service := ingest.NewService(ctx.DBManager, ctx.Logger)
	result, err := service.Collect(collectInput(ctx, &params))
	if err != nil {
		return handleCollectError(ctx, err)
	}

	if result.Dropped {
		return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
			"recorded":      false,
			"matched_goals": []string{},
		})
	}

	matched := result.MatchedGoals
	if matched == nil {
		matched = []string{}
	}
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"recorded":      true,
		"matched_goals": matched,
	})
}

type createEventBatchParams struct {
	Events []CreateEventParams `json:"events"`
}

// CreateEventBatchHandler ingests up to maxBatchSize events in one request.
// Items are processed independently; failures are reported per index.
func CreateEventBatchHandler(ctx *cartridge.Context) error {
	var params createEventBatchParams
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse batch request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}
	if len(params.Events) == 0 {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty batch"})
	}
	if len(params.Events) > maxBatchSize {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "batch too large"})
	}

	inputs := make([]ingest.CollectInput, len(params.Events))
	for i := range params.Events {
		inputs[i] = *collectInput(ctx, &params.Events[i])
	}

	service := ingest.NewService(ctx.DBManager, ctx.Logger)
	result := service.CollectBatch(inputs)
	return ctx.Status(http.StatusAccepted).JSON(result)
}

func collectInput(ctx *cartridge.Context, params *CreateEventParams) *ingest.CollectInput {
	userAgent := ctx.Get("User-Agent")
	if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgent = forwardedUA
	}

	return &ingest.CollectInput{
		URL:             params.URL,
		Referrer:        params.Referrer,
		EventType:       events.EventType(params.EventType),
		SessionID:       params.SessionID,
		UserID:          params.UserID,
		DurationSeconds: params.DurationSeconds,
		DeviceType:      params.Device.Type,
		OS:              params.Device.OS,
		Browser:         params.Device.Browser,
		CustomData:      params.CustomData,
		Timestamp:       params.Timestamp,
		UserAgent:       userAgent,
		IPAddress:       getClientIP(ctx.Ctx),
	}
}

func handleCollectError(ctx *cartridge.Context, err error) error {
	ctx.Logger.Error("Failed to collect event", slog.Any("error", err))

	if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
		return ctx.Status(599).JSON(fiber.Map{}) // custom status code
	}

	var websiteNotFoundErr *websites.WebsiteNotFoundError
	if errors.As(err, &websiteNotFoundErr) {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Website not found - please register your domain first",
			"code":  "WEBSITE_NOT_FOUND",
		})
	}

	return ctx.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
		"error": err.Error(),
		"code":  "COLLECTION_ERROR",
	})
}
