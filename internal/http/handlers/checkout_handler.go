package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bulkmart/internal/backend"
	"bulkmart/internal/services"
	"bulkmart/internal/validate"
)

type CheckoutHandler struct {
	Checkout *services.CheckoutService
	API      *backend.Client
}

// Review returns the quote together with what still blocks submission.
func (h *CheckoutHandler) Review(c *fiber.Ctx) error {
	q, err := h.Checkout.Quote(c.UserContext(), session(c), account(c))
	if err != nil {
		return fail(c, "checkout.view", err)
	}
	blockers := []string{}
	if len(q.Lines) == 0 {
		blockers = append(blockers, services.ErrCartEmpty.Error())
	}
	if q.Stale {
		blockers = append(blockers, services.ErrStale.Error())
	}
	return c.JSON(fiber.Map{
		"quote":      q,
		"can_submit": len(blockers) == 0,
		"blockers":   blockers,
	})
}

// checkStaff confirms an optional staff id exists on the backend.
func (h *CheckoutHandler) checkStaff(c *fiber.Ctx, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	id, ok := validate.ID(id)
	if !ok {
		return "", errors.New("invalid staff id")
	}
	if _, err := h.API.GetStaff(c.UserContext(), id); err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == fiber.StatusNotFound {
			return "", errors.New("unknown staff id")
		}
		return "", err
	}
	return id, nil
}

func (h *CheckoutHandler) Place(c *fiber.Ctx) error {
	var req services.PlaceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	mode, ok := validate.Mode(string(req.Mode))
	if !ok {
		return badRequest(c, "mode", services.ErrInvalidMode.Error())
	}
	req.Mode = mode
	addr, field := validate.Address(req.Address)
	if field != "" {
		return badRequest(c, "address."+field, "invalid "+field)
	}
	req.Address = addr
	req.Note = validate.Note(req.Note)

	staff, err := h.checkStaff(c, req.StaffID)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return fail(c, "order.staff", err)
		}
		return badRequest(c, "staff_id", err.Error())
	}
	req.StaffID = staff

	order, sub, err := h.Checkout.Place(c.UserContext(), session(c), account(c), req)
	if err != nil {
		return fail(c, "order.place", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"order": order, "submission": sub})
}

func (h *CheckoutHandler) Edit(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": services.ErrOrderNotFound.Error()})
	}
	var req services.EditRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	for i, l := range req.Lines {
		if req.Lines[i].ProductID, ok = validate.ID(l.ProductID); !ok {
			return badRequest(c, "lines.product_id", "invalid product")
		}
		if _, ok = validate.Qty(l.Quantity); !ok {
			return badRequest(c, "lines.quantity", "quantity must be between 1 and 9999")
		}
		if req.Lines[i].CreditPeriod, ok = validate.CreditPeriod(l.CreditPeriod); !ok {
			return badRequest(c, "lines.credit_period", "invalid credit period")
		}
	}
	if req.Mode != "" {
		if req.Mode, ok = validate.Mode(string(req.Mode)); !ok {
			return badRequest(c, "mode", services.ErrInvalidMode.Error())
		}
	}
	if req.Address != nil {
		addr, field := validate.Address(*req.Address)
		if field != "" {
			return badRequest(c, "address."+field, "invalid "+field)
		}
		req.Address = &addr
	}
	req.Note = validate.Note(req.Note)

	order, sum, err := h.Checkout.Edit(c.UserContext(), account(c), oid, req)
	if err != nil {
		return fail(c, "order.edit", err)
	}
	return c.JSON(fiber.Map{"order": order, "summary": sum})
}
