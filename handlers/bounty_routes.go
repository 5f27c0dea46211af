// handlers/bounty_routes.go
package handlers

import (
	"fmt"

	"github.com/Haki-Chain/Haki-Chain/middleware"
	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/Haki-Chain/Haki-Chain/services"
	"github.com/Haki-Chain/Haki-Chain/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SetupBountyRoutes(app *fiber.App, bountyService *services.BountyService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/bounties", func(c *fiber.Ctx) error {
		query := bountyService.DB.Model(&models.Bounty{}).
			Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") })

		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		if category := c.Query("category"); category != "" {
			query = query.Where("category = ?", category)
		}

		var bounties []models.Bounty
		if err := query.Order("created_at DESC").Find(&bounties).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch bounties"})
		}
		return c.JSON(bounties)
	})

	app.Get("/bounties/:id", func(c *fiber.Ctx) error {
		var bounty models.Bounty
		err := bountyService.DB.
			Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
			First(&bounty, "id = ?", c.Params("id")).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "bounty not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.JSON(bounty)
	})

	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/bounties", func(c *fiber.Ctx) error {
		var req struct {
			Title       string                    `json:"title"`
			Description string                    `json:"description"`
			Category    string                    `json:"category"`
			Location    string                    `json:"location"`
			FundingGoal float64                   `json:"funding_goal"`
			Milestones  []services.MilestoneInput `json:"milestones"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		bounty, err := bountyService.CreateBounty(actorFromCtx(c), req.Title, req.Description, req.Category, req.Location, req.FundingGoal, req.Milestones)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(bounty)
	})

	// Admin decisions
	secured.Post("/bounties/:id/approve", func(c *fiber.Ctx) error {
		var req struct {
			Notes string `json:"notes"`
		}
		_ = c.BodyParser(&req)

		bounty, err := bountyService.Approve(c.Params("id"), actorFromCtx(c), req.Notes)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(bounty)
	})

	secured.Post("/bounties/:id/reject", func(c *fiber.Ctx) error {
		var req struct {
			Notes string `json:"notes"`
		}
		_ = c.BodyParser(&req)

		bounty, err := bountyService.Reject(c.Params("id"), actorFromCtx(c), req.Notes)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(bounty)
	})

	// Lawyer claims the bounty
	secured.Post("/bounties/:id/claim", func(c *fiber.Ctx) error {
		bounty, err := bountyService.Claim(c.Params("id"), actorFromCtx(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(bounty)
	})

	// Donor funds the bounty
	secured.Post("/bounties/:id/donate", func(c *fiber.Ctx) error {
		var req struct {
			Amount  float64 `json:"amount"`
			Message string  `json:"message"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		donation, err := bountyService.Donate(c.Params("id"), actorFromCtx(c), req.Amount, req.Message)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(donation)
	})

	secured.Get("/bounties/:id/donations", func(c *fiber.Ctx) error {
		var donations []models.Donation
		if err := bountyService.DB.Where("bounty_id = ?", c.Params("id")).
			Order("created_at DESC").Find(&donations).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch donations"})
		}
		return c.JSON(donations)
	})

	// Milestone lifecycle
	secured.Post("/milestones/:id/complete", func(c *fiber.Ctx) error {
		notes := c.FormValue("notes")
		if notes == "" {
			var req struct {
				Notes string `json:"notes"`
			}
			_ = c.BodyParser(&req)
			notes = req.Notes
		}

		// Optional evidence file, stored in R2
		var evidenceURL *string
		if fh, err := c.FormFile("evidence"); err == nil && fh != nil {
			key := fmt.Sprintf("evidence/%s-%s", uuid.NewString(), fh.Filename)
			url, err := utils.UploadFileToR2(fh, key)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store evidence", "details": err.Error()})
			}
			evidenceURL = &url
		}

		milestone, err := bountyService.CompleteMilestone(c.Params("id"), actorFromCtx(c), notes, evidenceURL)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(milestone)
	})

	secured.Post("/milestones/:id/approve", func(c *fiber.Ctx) error {
		var req struct {
			Notes string `json:"notes"`
		}
		_ = c.BodyParser(&req)

		result, err := bountyService.ApproveMilestone(c.Params("id"), actorFromCtx(c), req.Notes)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	// Case documents
	secured.Post("/bounties/:id/documents", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
		}
		title := c.FormValue("title")
		if title == "" {
			title = fh.Filename
		}

		key := fmt.Sprintf("documents/%s-%s", uuid.NewString(), fh.Filename)
		url, err := utils.UploadFileToR2(fh, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store document", "details": err.Error()})
		}

		doc := models.BountyDocument{
			ID:         uuid.NewString(),
			BountyID:   c.Params("id"),
			UploadedBy: actorFromCtx(c).ID,
			Title:      title,
			FileURL:    url,
		}
		if err := bountyService.DB.Create(&doc).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save document"})
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	})

	secured.Get("/bounties/:id/documents", func(c *fiber.Ctx) error {
		var docs []models.BountyDocument
		if err := bountyService.DB.Where("bounty_id = ?", c.Params("id")).
			Order("created_at DESC").Find(&docs).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch documents"})
		}
		return c.JSON(docs)
	})

	// Reviews on completed bounties
	secured.Post("/bounties/:id/reviews", func(c *fiber.Ctx) error {
		var req struct {
			Rating  int    `json:"rating"`
			Comment string `json:"comment"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Rating < 1 || req.Rating > 5 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rating must be between 1 and 5"})
		}

		review := models.Review{
			ID:         uuid.NewString(),
			BountyID:   c.Params("id"),
			ReviewerID: actorFromCtx(c).ID,
			Rating:     req.Rating,
			Comment:    req.Comment,
		}
		if err := bountyService.DB.Create(&review).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save review"})
		}
		return c.Status(fiber.StatusCreated).JSON(review)
	})

	secured.Get("/bounties/:id/reviews", func(c *fiber.Ctx) error {
		var reviews []models.Review
		if err := bountyService.DB.Where("bounty_id = ?", c.Params("id")).
			Order("created_at DESC").Find(&reviews).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch reviews"})
		}
		return c.JSON(reviews)
	})
}
