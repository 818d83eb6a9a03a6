package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/madankumar045/airvitaweb/internal/airquality"
	"github.com/madankumar045/airvitaweb/internal/metrics"
)

const (
	IdentityHeader = "X-AirVita-Identity"
	SessionCookie  = "airvita_session"

	identityKey = "identity"
	maxIdentity = 128
)

// identityMiddleware resolves the caller's identity from the header, then
// the session cookie, and issues a new anonymous session when both are absent.
func identityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(IdentityHeader)
		if id == "" {
			id = c.Cookies(SessionCookie)
		}
		if len(id) > maxIdentity {
			return fiber.NewError(fiber.StatusBadRequest, "identity too long")
		}
		if !validIdentity(id) {
			return fiber.NewError(fiber.StatusBadRequest, "identity contains reserved characters")
		}
		if id == "" {
			id = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
				Expires:  time.Now().Add(365 * 24 * time.Hour),
			})
		}
		c.Locals(identityKey, airquality.Identity(id))
		return c.Next()
	}
}

// validIdentity rejects control characters and the MQTT topic separators,
// since identities become topic levels.
func validIdentity(id string) bool {
	for _, r := range id {
		if r < 0x20 || r == 0x7f || r == '/' || r == '+' || r == '#' {
			return false
		}
	}
	return true
}

func identity(c *fiber.Ctx) airquality.Identity {
	id, _ := c.Locals(identityKey).(airquality.Identity)
	return id
}

// metricsMiddleware records every request against its route pattern.
func metricsMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		m.ObserveHTTP(c.Method(), c.Route().Path, status, time.Since(start))
		return err
	}
}

// ErrorHandler renders every error as {error:true, message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
