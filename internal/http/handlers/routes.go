package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "bulkmart/internal/log"
)

// ErrorHandler logs unhandled errors and shows a friendly page without
// leaking internals.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	applog.Error(c, "server.error", err, map[string]any{"code": code})
	msg := "Something went wrong. Please try again."
	if code == fiber.StatusNotFound {
		msg = "Page not found"
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

// Mount registers every route on app.
func (d *Deps) Mount(app *fiber.App) {
	auth := RequireAccount(d.Secret, d.Sessions)

	api := app.Group("/api/v1")
	api.Get("/products", d.CatalogHandler.Products)
	api.Get("/categories", d.CatalogHandler.Categories)
	api.Get("/credit-periods", d.CatalogHandler.CreditPeriods)
	api.Get("/flash-offers", d.CatalogHandler.FlashOffers)

	api.Get("/cart", auth, d.CartHandler.View)
	api.Post("/cart/sync", auth, d.CartHandler.Sync)
	api.Post("/cart/items", auth, d.CartHandler.Add)
	api.Patch("/cart/items/:productId", auth, d.CartHandler.Update)
	api.Delete("/cart/items/:productId", auth, d.CartHandler.Remove)
	api.Delete("/cart", auth, d.CartHandler.Clear)
	api.Get("/cart/quote.xlsx", auth, d.CartHandler.QuoteXLSX)

	api.Get("/checkout", auth, d.CheckoutHandler.Review)
	api.Post("/orders", auth, d.CheckoutHandler.Place)
	api.Get("/orders", auth, d.OrderHandler.List)
	api.Get("/orders/:id", auth, d.OrderHandler.Get)
	api.Put("/orders/:id", auth, d.CheckoutHandler.Edit)
	api.Post("/orders/:id/cancel", auth, d.OrderHandler.Cancel)
	api.Get("/orders/:id/invoice", auth, d.OrderHandler.Invoice)
	api.Get("/submissions", auth, d.OrderHandler.Submissions)
	api.Post("/logout", auth, d.SessionHandler.Logout)

	app.Get("/cart/summary", auth, d.CartHandler.Summary)
	app.Get("/orders/:id", auth, d.OrderHandler.View)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return notFound(c, "Page not found")
	})
}
