// handlers/common.go
package handlers

import (
	"errors"

	"github.com/Haki-Chain/Haki-Chain/services"
	"github.com/gofiber/fiber/v2"
)

// actorFromCtx rebuilds the caller identity placed by UserContextMiddleware.
func actorFromCtx(c *fiber.Ctx) services.Actor {
	actor := services.Actor{}
	if id, ok := c.Locals("user_id").(string); ok {
		actor.ID = id
	}
	if roles, ok := c.Locals("user_roles").([]string); ok {
		actor.Roles = roles
	}
	return actor
}

// respondError maps the four domain error kinds to distinct HTTP statuses.
// Callers can tell a retriable settlement failure (502) apart from their own
// bad input (400/403/409).
func respondError(c *fiber.Ctx, err error) error {
	var (
		validationErr *services.ValidationError
		authErr       *services.AuthorizationError
		stateErr      *services.InvalidStateError
		settleErr     *services.SettlementError
	)
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Reason, "kind": "validation"})
	case errors.As(err, &authErr):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": authErr.Reason, "kind": "authorization"})
	case errors.As(err, &stateErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": stateErr.Reason, "kind": "invalid_state"})
	case errors.As(err, &settleErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": settleErr.Error(), "kind": "settlement"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "details": err.Error()})
	}
}
