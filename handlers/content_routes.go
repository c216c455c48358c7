// handlers/content_routes.go
package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"verifast/middleware"
	"verifast/models"
	"verifast/workers"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupContentRoutes(app *fiber.App, orchestrator *workers.Orchestrator) {
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireStaff())

	// Kick off an acquisition run; the response returns immediately with the
	// job id while the run continues in the background.
	adminGroup.Post("/acquisition/run", func(c *fiber.Ctx) error {
		type Req struct {
			Languages   []string `json:"languages"`
			MaxArticles int      `json:"max_articles"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if len(req.Languages) == 0 {
			req.Languages = []string{"en", "es"}
		}

		triggeredBy := middleware.UserID(c)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
			defer cancel()
			if _, err := orchestrator.Run(ctx, triggeredBy, req.Languages, req.MaxArticles); err != nil {
				log.Printf("❌ admin-triggered acquisition run failed: %v", err)
			}
		}()

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message":   "acquisition run started",
			"languages": req.Languages,
		})
	})

	adminGroup.Get("/acquisition/jobs", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		if limit < 1 || limit > 100 {
			limit = 20
		}
		var jobs []models.ContentAcquisitionJob
		err := orchestrator.DB.Order("started_at DESC").Limit(limit).Find(&jobs).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list jobs",
				"cause": err.Error(),
			})
		}
		return c.JSON(jobs)
	})

	adminGroup.Get("/acquisition/metrics", func(c *fiber.Ctx) error {
		days, _ := strconv.Atoi(c.Query("days", "7"))
		if days < 1 || days > 90 {
			days = 7
		}
		since := time.Now().UTC().AddDate(0, 0, -days)

		var metrics []models.AcquisitionMetric
		err := orchestrator.DB.Where("date >= ?", since).
			Order("date DESC").
			Find(&metrics).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load metrics",
				"cause": err.Error(),
			})
		}
		return c.JSON(metrics)
	})

	adminGroup.Post("/sources", func(c *fiber.Ctx) error {
		type Req struct {
			Name            string   `json:"name"`
			SourceType      string   `json:"source_type"`
			Endpoint        string   `json:"endpoint"`
			APIKey          string   `json:"api_key"`
			Languages       []string `json:"languages"`
			Priority        string   `json:"priority"`
			RequestsPerHour int      `json:"requests_per_hour"`
			RequestsPerDay  int      `json:"requests_per_day"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.Name == "" || req.Endpoint == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "name and endpoint are required",
			})
		}
		if _, err := orchestrator.Registry.For(models.SourceType(req.SourceType)); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown source_type",
				"cause": err.Error(),
			})
		}

		source := models.ContentSource{
			Name:       req.Name,
			SourceType: models.SourceType(req.SourceType),
			Endpoint:   req.Endpoint,
			APIKey:     req.APIKey,
			Languages:  req.Languages,
			Priority:   models.SourcePriority(req.Priority),
			IsActive:   true,
		}
		if source.Priority == "" {
			source.Priority = models.PriorityMedium
		}
		if req.RequestsPerHour > 0 {
			source.RequestsPerHour = req.RequestsPerHour
		}
		if req.RequestsPerDay > 0 {
			source.RequestsPerDay = req.RequestsPerDay
		}

		if err := orchestrator.DB.Create(&source).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to register source",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(source)
	})

	adminGroup.Get("/sources", func(c *fiber.Ctx) error {
		var sources []models.ContentSource
		if err := orchestrator.DB.Order("name ASC").Find(&sources).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list sources",
				"cause": err.Error(),
			})
		}

		now := time.Now()
		response := make([]fiber.Map, 0, len(sources))
		for i := range sources {
			scored := orchestrator.Ranker.Score(sources[i], now)
			response = append(response, fiber.Map{
				"source":              sources[i],
				"health_score":        scored.HealthScore,
				"performance_score":   scored.PerformanceScore,
				"orchestration_score": scored.OrchestrationScore,
				"quota":               scored.Quota,
			})
		}
		return c.JSON(response)
	})

	adminGroup.Patch("/sources/:id", func(c *fiber.Ctx) error {
		var source models.ContentSource
		err := orchestrator.DB.Where("id = ?", c.Params("id")).First(&source).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "source not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load source",
				"cause": err.Error(),
			})
		}

		type Req struct {
			IsActive *bool   `json:"is_active"`
			Priority *string `json:"priority"`
			Status   *string `json:"status"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		updates := map[string]interface{}{}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if req.Priority != nil {
			updates["priority"] = *req.Priority
		}
		if req.Status != nil {
			updates["status"] = *req.Status
			if models.SourceStatus(*req.Status) == models.SourceStatusActive {
				updates["consecutive_failures"] = 0
			}
		}
		if len(updates) == 0 {
			return c.JSON(source)
		}

		if err := orchestrator.DB.Model(&source).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update source",
				"cause": err.Error(),
			})
		}
		return c.JSON(source)
	})
}
