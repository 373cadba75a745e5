package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	applog "bulkmart/internal/log"
	"bulkmart/internal/services"
)

func ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   false, // enable true behind TLS
		})
	}
	return sid
}

type SessionHandler struct {
	Sessions *services.SessionService
}

// Logout drops the session's account binding and its local cart.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	sid := session(c)
	if err := h.Sessions.Logout(sid); err != nil {
		return err
	}
	applog.Audit(c, "session.logout", map[string]any{"sid": sid})
	c.ClearCookie("token")
	return c.JSON(fiber.Map{"ok": true})
}
