// handlers/economy_routes.go
package handlers

import (
	"errors"
	"strconv"

	"verifast/middleware"
	"verifast/models"
	"verifast/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEconomyRoutes(app *fiber.App, accounts *services.AccountService, tx *services.TransactionManager, features *services.FeatureService, auditor *services.LedgerAuditor) {
	// 🔐 Secured routes — require user context (userID, roles)
	// The gateway forwards paths like /api/v1/reader/s/xp/balance -> /s/xp/balance
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Get("/xp/balance", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		if _, err := accounts.EnsureAccount(userID, middleware.IsStaff(c)); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load account",
				"cause": err.Error(),
			})
		}
		snap, err := tx.GetBalance(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load balance",
				"cause": err.Error(),
			})
		}
		return c.JSON(snap)
	})

	securedGroup.Get("/xp/history", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		entries, total, err := tx.History(userID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load ledger history",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"entries": entries,
			"total":   total,
			"page":    page,
			"size":    size,
		})
	})

	securedGroup.Get("/features", func(c *fiber.Ctx) error {
		account, err := accounts.EnsureAccount(middleware.UserID(c), middleware.IsStaff(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load account",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"catalog": features.Catalog().All(),
			"owned":   services.Ownership(account),
		})
	})

	securedGroup.Post("/features/purchase", func(c *fiber.Ctx) error {
		type Req struct {
			FeatureKey string `json:"feature_key"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		userID := middleware.UserID(c)
		if _, err := accounts.EnsureAccount(userID, middleware.IsStaff(c)); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load account",
				"cause": err.Error(),
			})
		}

		purchase, err := features.Purchase(c.Context(), userID, req.FeatureKey)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":  "feature unlocked",
			"purchase": purchase,
		})
	})

	securedGroup.Get("/features/recommendations", func(c *fiber.Ctx) error {
		account, err := accounts.EnsureAccount(middleware.UserID(c), middleware.IsStaff(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load account",
				"cause": err.Error(),
			})
		}
		return c.JSON(features.Recommend(account))
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireStaff())

	adminGroup.Post("/xp/adjust", func(c *fiber.Ctx) error {
		type Req struct {
			AccountID string `json:"account_id"`
			Amount    int64  `json:"amount"` // positive credits, negative debits
			Reason    string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.Amount == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "amount must be non-zero",
			})
		}

		var (
			entry interface{}
			err   error
		)
		if req.Amount > 0 {
			entry, err = tx.Earn(c.Context(), req.AccountID, req.Amount,
				models.SourceAdminAdjustment, req.Reason, services.LedgerRef{})
		} else {
			entry, err = tx.Spend(c.Context(), req.AccountID, -req.Amount,
				models.SourceAdminAdjustment, req.Reason, services.LedgerRef{})
		}
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"message": "adjustment applied",
			"entry":   entry,
		})
	})

	adminGroup.Post("/features/price", func(c *fiber.Ctx) error {
		type Req struct {
			FeatureKey string `json:"feature_key"`
			Cost       int64  `json:"cost"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := features.AdjustPrice(req.FeatureKey, req.Cost, middleware.UserID(c)); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":     "price updated",
			"feature_key": req.FeatureKey,
			"cost":        req.Cost,
		})
	})

	adminGroup.Get("/xp/audit/:account_id", func(c *fiber.Ctx) error {
		report, err := auditor.Audit(c.Params("account_id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "audit failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(report)
	})
}

// serviceError maps domain errors onto HTTP statuses.
func serviceError(c *fiber.Ctx, err error) error {
	var insufficient *services.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":     "insufficient balance",
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.Is(err, services.ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidFeature),
		errors.Is(err, services.ErrPrerequisiteMissing):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrFeatureAlreadyOwned),
		errors.Is(err, services.ErrAlreadyReacted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSuspiciousActivity):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrConcurrentTransaction):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "operation failed",
			"cause": err.Error(),
		})
	}
}
