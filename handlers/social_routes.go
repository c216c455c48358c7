// handlers/social_routes.go
package handlers

import (
	"verifast/middleware"
	"verifast/models"
	"verifast/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSocialRoutes(app *fiber.App, accounts *services.AccountService, social *services.SocialInteractionManager) {
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Get("/articles/:id/comments", func(c *fiber.Ctx) error {
		comments, err := social.ListComments(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list comments",
				"cause": err.Error(),
			})
		}
		return c.JSON(comments)
	})

	securedGroup.Post("/articles/:id/comments", func(c *fiber.Ctx) error {
		type Req struct {
			Content  string  `json:"content"`
			ParentID *string `json:"parent_id,omitempty"`
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

		comment, err := social.PostComment(c.Context(), userID, c.Params("id"), req.Content, req.ParentID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	})

	securedGroup.Post("/comments/:id/interactions", func(c *fiber.Ctx) error {
		type Req struct {
			Type string `json:"type"` // bronze, silver, gold
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

		interaction, err := social.AddInteraction(c.Context(), userID, c.Params("id"), models.InteractionType(req.Type))
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(interaction)
	})
}
