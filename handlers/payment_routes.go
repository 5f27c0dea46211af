// handlers/payment_routes.go
package handlers

import (
	"github.com/Haki-Chain/Haki-Chain/middleware"
	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/Haki-Chain/Haki-Chain/services"
	"github.com/gofiber/fiber/v2"
)

func SetupPaymentRoutes(app *fiber.App, tokenService *services.TokenService) {
	// 🔐 All payment/token routes require user context
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Payments received or sent by the caller
	secured.Get("/payments", func(c *fiber.Ctx) error {
		userID := actorFromCtx(c).ID

		var payments []models.Payment
		if err := tokenService.DB.
			Where("sender_id = ? OR receiver_id = ?", userID, userID).
			Order("created_at DESC").Find(&payments).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch payments"})
		}
		return c.JSON(payments)
	})

	secured.Get("/tokens/balance", func(c *fiber.Ctx) error {
		balance, err := tokenService.Balance(actorFromCtx(c).ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"balance": balance})
	})

	secured.Get("/tokens/transactions", func(c *fiber.Ctx) error {
		userID := actorFromCtx(c).ID

		var token models.Token
		if err := tokenService.DB.Where("external_user_id = ?", userID).First(&token).Error; err != nil {
			// No token row yet means no history
			return c.JSON([]models.TokenTransaction{})
		}

		var entries []models.TokenTransaction
		if err := tokenService.DB.Where("token_id = ?", token.ID).
			Order("created_at DESC").Find(&entries).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch transactions"})
		}
		return c.JSON(entries)
	})

	secured.Get("/tokens/available-balance", func(c *fiber.Ctx) error {
		available, err := tokenService.AvailableBalance(actorFromCtx(c).ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"available_balance": available})
	})

	secured.Post("/tokens/convert", func(c *fiber.Ctx) error {
		var req struct {
			TokenAmount float64 `json:"token_amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		conversion, err := tokenService.Convert(actorFromCtx(c).ID, req.TokenAmount)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(conversion)
	})

	secured.Get("/conversions", func(c *fiber.Ctx) error {
		var conversions []models.TokenConversion
		if err := tokenService.DB.Where("external_user_id = ?", actorFromCtx(c).ID).
			Order("created_at DESC").Find(&conversions).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch conversions"})
		}
		return c.JSON(conversions)
	})

	secured.Post("/withdrawals", func(c *fiber.Ctx) error {
		var req struct {
			Amount  float64                    `json:"amount"`
			Method  models.WithdrawalMethod    `json:"method"`
			Details services.WithdrawalDetails `json:"details"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		withdrawal, err := tokenService.Withdraw(actorFromCtx(c).ID, req.Amount, req.Method, req.Details)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(withdrawal)
	})

	secured.Get("/withdrawals", func(c *fiber.Ctx) error {
		var withdrawals []models.Withdrawal
		if err := tokenService.DB.Where("external_user_id = ?", actorFromCtx(c).ID).
			Order("created_at DESC").Find(&withdrawals).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch withdrawals"})
		}
		return c.JSON(withdrawals)
	})
}
