package handlers

import (
	"crypto/subtle"
	"log/slog"

	"github.com/colorify-app/backend/internal/config"
	"github.com/colorify-app/backend/internal/dto"
	"github.com/colorify-app/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives billing provider events that grant or revoke
// subscription credits.
type WebhookHandler struct {
	cfg  *config.Config
	subs *services.SubscriptionService
}

func NewWebhookHandler(cfg *config.Config, subs *services.SubscriptionService) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, subs: subs}
}

func (h *WebhookHandler) Billing(c *fiber.Ctx) error {
	// An unconfigured secret means the endpoint does not exist.
	if h.cfg.BillingWebhookSecret == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Not found",
		})
	}
	auth := c.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(auth), []byte(h.cfg.BillingWebhookSecret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var payload dto.BillingWebhook
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid webhook payload",
		})
	}

	if err := h.subs.HandleWebhookEvent(c.UserContext(), &payload.Event); err != nil {
		slog.Error("billing webhook processing failed",
			"event_type", payload.Event.Type,
			"app_user_id", payload.Event.AppUserID,
			"error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process event",
		})
	}

	return c.JSON(fiber.Map{"received": true})
}
