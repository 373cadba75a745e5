package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"bulkmart/internal/backend"
	applog "bulkmart/internal/log"
	"bulkmart/internal/services"
)

var errNoToken = errors.New("missing bearer token")

func bearer(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// printable pages opened from the app carry the token as a cookie;
	// anything that changes state must send the header
	if c.Method() == fiber.MethodGet {
		return c.Cookies("token")
	}
	return ""
}

// accountFromToken validates an HS256 token and returns its account id
// (the account_id claim, else sub).
func accountFromToken(tok string, secret []byte) (string, error) {
	if tok == "" {
		return "", errNoToken
	}
	if len(secret) == 0 {
		return "", errors.New("token secret not configured")
	}
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	if id, _ := claims["account_id"].(string); id != "" {
		return id, nil
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no account")
	}
	return sub, nil
}

func loginRequired(c *fiber.Ctx) error {
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required", "redirect": "/login"})
	}
	return c.Redirect("/login")
}

// RequireAccount authenticates the caller from its bearer token, binds the
// session to that account and forwards the token to the backend.
func RequireAccount(secret []byte, sessions *services.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := bearer(c)
		acct, err := accountFromToken(tok, secret)
		if err != nil {
			fields := map[string]any{}
			if err != errNoToken {
				fields["reason"] = err.Error()
			}
			applog.Security(c, "access.denied.account", fields)
			return loginRequired(c)
		}
		sid := ensureSID(c)
		switched, err := sessions.Bind(sid, acct)
		if err != nil {
			return err
		}
		c.Locals("account", acct)
		c.Locals("sid", sid)
		if switched {
			applog.Audit(c, "session.switch", map[string]any{"sid": sid})
		}
		c.SetUserContext(backend.WithToken(c.UserContext(), tok))
		return c.Next()
	}
}

func account(c *fiber.Ctx) string {
	s, _ := c.Locals("account").(string)
	return s
}

func session(c *fiber.Ctx) string {
	s, _ := c.Locals("sid").(string)
	return s
}
