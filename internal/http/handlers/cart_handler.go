package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"bulkmart/internal/services"
	"bulkmart/internal/validate"
)

type CartHandler struct {
	Carts    *services.CartStore
	Checkout *services.CheckoutService
}

type addItemReq struct {
	ProductID    string `json:"product_id" form:"product_id"`
	Quantity     int    `json:"quantity" form:"quantity"`
	CreditPeriod string `json:"credit_period" form:"credit_period"`
}

// patchItemReq leaves a field unchanged when it is absent.
type patchItemReq struct {
	Quantity     *int    `json:"quantity"`
	CreditPeriod *string `json:"credit_period"`
}

// quote answers with the priced cart. A stale quote is still returned, with
// a 200 and stale=true, so the client can show the saved cart.
func (h *CartHandler) quote(c *fiber.Ctx, status int) error {
	q, err := h.Checkout.Quote(c.UserContext(), session(c), account(c))
	if err != nil {
		return fail(c, "cart.view", err)
	}
	return c.Status(status).JSON(q)
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	return h.quote(c, fiber.StatusOK)
}

func (h *CartHandler) Sync(c *fiber.Ctx) error {
	if _, err := h.Carts.Sync(c.UserContext(), session(c), account(c)); err != nil {
		return fail(c, "cart.sync", err)
	}
	return h.quote(c, fiber.StatusOK)
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	var req addItemReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	pid, ok := validate.ID(req.ProductID)
	if !ok {
		return badRequest(c, "product_id", "invalid product")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	qty, ok := validate.Qty(req.Quantity)
	if !ok {
		return badRequest(c, "quantity", "quantity must be between 1 and 9999")
	}
	period, ok := validate.CreditPeriod(req.CreditPeriod)
	if !ok {
		return badRequest(c, "credit_period", "invalid credit period")
	}
	if _, err := h.Carts.AddItem(c.UserContext(), session(c), account(c), pid, qty, period); err != nil {
		return fail(c, "cart.add", err)
	}
	return h.quote(c, fiber.StatusCreated)
}

func (h *CartHandler) Update(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Params("productId"))
	if !ok {
		return badRequest(c, "product_id", "invalid product")
	}
	var req patchItemReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	if req.Quantity == nil && req.CreditPeriod == nil {
		return badRequest(c, "body", "nothing to update")
	}

	ctx, sid, acct := c.UserContext(), session(c), account(c)
	if req.Quantity != nil {
		qty, ok := validate.Qty(*req.Quantity)
		if !ok {
			return badRequest(c, "quantity", "quantity must be between 1 and 9999")
		}
		if _, err := h.Carts.SetQuantity(ctx, sid, acct, pid, qty); err != nil {
			return fail(c, "cart.quantity", err)
		}
	}
	if req.CreditPeriod != nil {
		period, ok := validate.CreditPeriod(*req.CreditPeriod)
		if !ok {
			return badRequest(c, "credit_period", "invalid credit period")
		}
		if _, err := h.Carts.SetCreditPeriod(ctx, sid, acct, pid, period); err != nil {
			return fail(c, "cart.credit", err)
		}
	}
	return h.quote(c, fiber.StatusOK)
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Params("productId"))
	if !ok {
		return badRequest(c, "product_id", "invalid product")
	}
	if _, err := h.Carts.RemoveItem(c.UserContext(), session(c), account(c), pid); err != nil {
		return fail(c, "cart.remove", err)
	}
	return h.quote(c, fiber.StatusOK)
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	if err := h.Carts.Clear(c.UserContext(), session(c), account(c)); err != nil {
		return fail(c, "cart.clear", err)
	}
	return h.quote(c, fiber.StatusOK)
}

// QuoteXLSX downloads the priced cart as a spreadsheet.
func (h *CartHandler) QuoteXLSX(c *fiber.Ctx) error {
	q, err := h.Checkout.Quote(c.UserContext(), session(c), account(c))
	if err != nil {
		return fail(c, "cart.export", err)
	}
	var buf bytes.Buffer
	if err := services.WriteQuoteXLSX(&buf, q); err != nil {
		return err
	}
	c.Attachment("quote.xlsx")
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(buf.Bytes())
}

// Summary renders a printable breakdown of the cart.
func (h *CartHandler) Summary(c *fiber.Ctx) error {
	q, err := h.Checkout.Quote(c.UserContext(), session(c), account(c))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).Render("notfound", fiber.Map{"Message": "Could not load your cart"})
	}
	return render(c, "summary", fiber.Map{"Quote": q})
}
