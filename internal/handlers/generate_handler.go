package handlers

import (
	"errors"
	"log/slog"

	"github.com/colorify-app/backend/internal/config"
	"github.com/colorify-app/backend/internal/dto"
	"github.com/colorify-app/backend/internal/falclient"
	"github.com/colorify-app/backend/internal/middleware"
	"github.com/colorify-app/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// GenerateHandler exposes the coloring-page generation workflow.
type GenerateHandler struct {
	cfg        *config.Config
	generation *services.GenerationService
}

func NewGenerateHandler(cfg *config.Config, generation *services.GenerationService) *GenerateHandler {
	return &GenerateHandler{cfg: cfg, generation: generation}
}

// Generate handles POST /colorify/generate. Provider error detail stays in
// logs; the client only sees which step failed.
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if req.ImageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Missing required field: imageUrl",
		})
	}

	if h.cfg.FalAPIKey == "" {
		slog.Error("generation requested but FAL_API_KEY is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "API key not configured",
		})
	}

	idempotencyKey := c.Get("X-Idempotency-Key")

	out, err := h.generation.Generate(c.UserContext(), userID, req.ImageURL, idempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoSubscription):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Subscription not found",
			})
		case errors.Is(err, services.ErrInsufficientCredits):
			return c.Status(fiber.StatusPaymentRequired).JSON(dto.ErrorResponse{
				Error: true, Message: "No credits remaining",
			})
		case errors.Is(err, falclient.ErrJobTimeout):
			slog.Error("generation timed out", "user_id", userID.String(), "error", err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Image generation timeout",
			})
		case errors.Is(err, falclient.ErrSubmission), errors.Is(err, falclient.ErrJobFailed),
			errors.Is(err, services.ErrNoImageProduced):
			slog.Error("generation failed", "user_id", userID.String(), "error", err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to generate image",
			})
		default:
			slog.Error("unexpected generation error", "user_id", userID.String(), "error", err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
	}

	return c.JSON(dto.GenerateResponse{
		Success:           true,
		GeneratedImageURL: out.ImageURL,
		CreditsUsed:       out.CreditsUsed,
		CreditsRemaining:  out.CreditsRemaining,
	})
}
