// handlers/matching_routes.go
package handlers

import (
	"github.com/Haki-Chain/Haki-Chain/middleware"
	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/Haki-Chain/Haki-Chain/services"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupMatchingRoutes(app *fiber.App, db *gorm.DB, matchingService *services.MatchingService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Rank verified lawyers for a bounty. Advisory only: the result never
	// assigns anyone, claiming still goes through /bounties/:id/claim.
	secured.Post("/bounties/:id/match", func(c *fiber.Ctx) error {
		var bounty models.Bounty
		if err := db.First(&bounty, "id = ?", c.Params("id")).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "bounty not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		var profiles []models.LawyerProfile
		if err := db.Where("verification_status = ?", models.VerificationVerified).
			Find(&profiles).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch lawyers"})
		}

		candidates := make([]services.LawyerCandidate, 0, len(profiles))
		for _, p := range profiles {
			candidates = append(candidates, services.LawyerCandidate{
				ID:                p.ExternalUserID,
				Specialization:    p.Specialization,
				YearsOfExperience: p.YearsOfExperience,
				Location:          p.Jurisdiction,
			})
		}

		ranked := matchingService.RankLawyers(bounty.Title, bounty.Description, bounty.Category, bounty.Location, candidates)
		return c.JSON(fiber.Map{
			"bounty_id":  bounty.ID,
			"ranked_ids": ranked,
		})
	})

	secured.Post("/documents/analyze", func(c *fiber.Ctx) error {
		var req struct {
			Document string `json:"document"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Document == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "document text is required"})
		}

		return c.JSON(matchingService.AnalyzeDocument(req.Document))
	})
}
