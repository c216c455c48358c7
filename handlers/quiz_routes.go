// handlers/quiz_routes.go
package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"verifast/middleware"
	"verifast/models"
	"verifast/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupQuizRoutes(app *fiber.App, accounts *services.AccountService, processor *services.QuizResultProcessor) {
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	// Paginated catalog of readable articles with a generated quiz
	securedGroup.Get("/articles", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		if page < 1 {
			page = 1
		}
		if size < 1 || size > 100 {
			size = 20
		}
		language := c.Query("language", "")
		topic := c.Query("topic", "")

		q := processor.DB.Model(&models.Article{}).
			Where("quiz_status = ?", models.QuizStatusReady)
		if language != "" {
			q = q.Where("language = ?", language)
		}
		if topic != "" {
			q = q.Where("topic_category = ?", topic)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to count articles",
				"cause": err.Error(),
			})
		}

		var articles []models.Article
		err := q.Omit("content", "quiz").
			Order("publication_date DESC NULLS LAST, created_at DESC").
			Offset((page - 1) * size).Limit(size).
			Find(&articles).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list articles",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"articles": articles,
			"total":    total,
			"page":     page,
			"size":     size,
		})
	})

	securedGroup.Get("/articles/:slug", func(c *fiber.Ctx) error {
		var article models.Article
		err := processor.DB.Where("slug = ?", c.Params("slug")).First(&article).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "article not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load article",
				"cause": err.Error(),
			})
		}

		// Strip answer keys before the quiz reaches the reader
		questions, _ := services.NormalizeQuiz(article.Quiz)
		type publicQuestion struct {
			Question string   `json:"question"`
			Options  []string `json:"options"`
		}
		public := make([]publicQuestion, 0, len(questions))
		for _, q := range questions {
			public = append(public, publicQuestion{Question: q.Question, Options: q.Options})
		}
		article.Quiz = nil

		return c.JSON(fiber.Map{
			"article": article,
			"quiz":    public,
		})
	})

	securedGroup.Post("/quizzes/submit", func(c *fiber.Ctx) error {
		type Req struct {
			ArticleID          string          `json:"article_id"`
			Answers            json.RawMessage `json:"answers"`
			WPMUsed            int             `json:"wpm_used"`
			ReadingTimeSeconds int             `json:"reading_time_seconds"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.ArticleID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "article_id is required",
			})
		}
		if req.WPMUsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "wpm_used must be positive",
			})
		}

		userID := middleware.UserID(c)
		if _, err := accounts.EnsureAccount(userID, middleware.IsStaff(c)); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load account",
				"cause": err.Error(),
			})
		}

		result, err := processor.Process(c.Context(), services.QuizSubmission{
			AccountID:          userID,
			ArticleID:          req.ArticleID,
			Answers:            req.Answers,
			WPMUsed:            req.WPMUsed,
			ReadingTimeSeconds: req.ReadingTimeSeconds,
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "article not found"})
			}
			return serviceError(c, err)
		}
		return c.JSON(result)
	})
}
