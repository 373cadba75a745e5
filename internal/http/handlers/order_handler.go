package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "bulkmart/internal/log"
	"bulkmart/internal/services"
	"bulkmart/internal/validate"
)

type OrderHandler struct {
	Orders *services.OrderService
}

func (h *OrderHandler) orderID(c *fiber.Ctx) (string, bool) {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "order"})
	}
	return oid, ok
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	orders, err := h.Orders.List(c.UserContext(), account(c))
	if err != nil {
		return fail(c, "order.list", err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	oid, ok := h.orderID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": services.ErrOrderNotFound.Error()})
	}
	o, err := h.Orders.Get(c.UserContext(), account(c), oid)
	if err != nil {
		return fail(c, "order.get", err)
	}
	return c.JSON(o)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	oid, ok := h.orderID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": services.ErrOrderNotFound.Error()})
	}
	o, err := h.Orders.Cancel(c.UserContext(), account(c), oid)
	if err != nil {
		return fail(c, "order.cancel", err)
	}
	return c.JSON(o)
}

func (h *OrderHandler) Invoice(c *fiber.Ctx) error {
	oid, ok := h.orderID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": services.ErrOrderNotFound.Error()})
	}
	pdf, err := h.Orders.Invoice(c.UserContext(), account(c), oid)
	if err != nil {
		return fail(c, "order.invoice", err)
	}
	c.Attachment("invoice-" + oid + ".pdf")
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(pdf)
}

func (h *OrderHandler) Submissions(c *fiber.Ctx) error {
	subs, err := h.Orders.Submissions(account(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"submissions": subs})
}

// View renders an order page for its owner. Other accounts' orders look
// missing.
func (h *OrderHandler) View(c *fiber.Ctx) error {
	oid, ok := h.orderID(c)
	if !ok {
		return notFound(c, "Order not found")
	}
	o, err := h.Orders.Get(c.UserContext(), account(c), oid)
	if errors.Is(err, services.ErrOrderNotFound) {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": oid})
		return notFound(c, "Order not found")
	}
	if err != nil {
		applog.Error(c, "order.view.fail", err, nil)
		return c.Status(fiber.StatusBadGateway).Render("notfound", fiber.Map{"Message": "Could not load this order"})
	}
	return render(c, "order", fiber.Map{"Order": o})
}
