package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"bulkmart/internal/backend"
	applog "bulkmart/internal/log"
	"bulkmart/internal/services"
)

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if acct := account(c); acct != "" {
		data["Account"] = acct
	}
	return c.Render(tmpl, data)
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": msg})
}

func badRequest(c *fiber.Ctx, field, msg string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "field": field})
}

// fail maps a service or backend error onto a JSON response.
func fail(c *fiber.Ctx, action string, err error) error {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, services.ErrReverted):
		applog.Warn(c, action, err, nil)
		msg := err.Error()
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": msg, "resynced": true})
	case errors.Is(err, services.ErrStale):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "cart service unavailable, showing saved cart", "stale": true})
	case errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrUnknownProduct),
		errors.Is(err, services.ErrUnknownCreditPeriod),
		errors.Is(err, services.ErrInvalidMode),
		errors.Is(err, services.ErrMissingAddress),
		errors.Is(err, services.ErrCartEmpty):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotInCart), errors.Is(err, services.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSubmissionPending):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &apiErr):
		applog.Warn(c, action, err, map[string]any{"backend_status": apiErr.Status})
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{"error": apiErr.Message})
	case errors.Is(err, context.DeadlineExceeded):
		applog.Error(c, action, err, nil)
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "backend timed out"})
	default:
		applog.Error(c, action, err, nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "backend unavailable"})
	}
}
