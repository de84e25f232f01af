package handlers

import (
	"log/slog"

	"github.com/colorify-app/backend/internal/dto"
	"github.com/colorify-app/backend/internal/middleware"
	"github.com/colorify-app/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// SubscriptionHandler serves the caller's own subscription. A first read
// provisions the starter plan so new accounts see a balance immediately.
type SubscriptionHandler struct {
	subs *services.SubscriptionService
}

func NewSubscriptionHandler(subs *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

func (h *SubscriptionHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	sub, err := h.subs.GetOrCreate(c.UserContext(), userID)
	if err != nil {
		slog.Error("failed to load subscription", "user_id", userID.String(), "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load subscription",
		})
	}

	return c.JSON(dto.SubscriptionResponse{
		ID:               sub.ID,
		UserID:           sub.UserID,
		Plan:             sub.Plan,
		CreditsTotal:     sub.CreditsTotal,
		CreditsUsed:      sub.CreditsUsed,
		CreditsRemaining: sub.CreditsRemaining(),
		IsActive:         sub.IsActive,
		RenewalDate:      sub.RenewalDate,
	})
}
