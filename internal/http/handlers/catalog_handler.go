package handlers

import (
	"github.com/gofiber/fiber/v2"

	"bulkmart/internal/services"
)

// CatalogHandler serves the public reference data the client prices with.
type CatalogHandler struct {
	Catalog *services.CatalogService
}

func (h *CatalogHandler) Products(c *fiber.Ctx) error {
	ps, err := h.Catalog.Products(c.UserContext())
	if err != nil {
		return fail(c, "catalog.products", err)
	}
	return c.JSON(fiber.Map{"products": ps})
}

func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	ref, err := h.Catalog.Reference(c.UserContext())
	if err != nil {
		return fail(c, "catalog.categories", err)
	}
	return c.JSON(fiber.Map{"categories": ref.Categories, "category_discounts": ref.CategoryDiscounts})
}

func (h *CatalogHandler) CreditPeriods(c *fiber.Ctx) error {
	ref, err := h.Catalog.Reference(c.UserContext())
	if err != nil {
		return fail(c, "catalog.credit_periods", err)
	}
	return c.JSON(fiber.Map{"credit_periods": ref.CreditPeriods})
}

func (h *CatalogHandler) FlashOffers(c *fiber.Ctx) error {
	ref, err := h.Catalog.Reference(c.UserContext())
	if err != nil {
		return fail(c, "catalog.flash_offers", err)
	}
	return c.JSON(fiber.Map{"flash_offers": ref.FlashOffers})
}
