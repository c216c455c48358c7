// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts user identity and roles set by Gateway.
// It is applied only to routes under /s/ — but for safety, we guard.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		rolesStr := c.Get("X-User-Roles")

		path := c.Path()
		isSecured := strings.HasPrefix(path, "/s/")
		if isSecured && userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		// Attach to ctx for handlers
		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)
		c.Locals("is_staff", hasRole(roles, "staff") || hasRole(roles, "admin"))

		return c.Next()
	}
}

// RequireStaff guards admin routes. Must run after UserContextMiddleware.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isStaff, _ := c.Locals("is_staff").(bool)
		if !isStaff {
			log.Printf("🚫 [USER_CTX] non-staff user %v denied on %s", c.Locals("user_id"), c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "staff role required",
			})
		}
		return c.Next()
	}
}

// UserID returns the authenticated account id attached by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// IsStaff reports whether the request carries a staff/admin role.
func IsStaff(c *fiber.Ctx) bool {
	v, _ := c.Locals("is_staff").(bool)
	return v
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}
