package handlers

import (
	"errors"
	"log/slog"

	"github.com/colorify-app/backend/internal/dto"
	"github.com/colorify-app/backend/internal/middleware"
	"github.com/colorify-app/backend/internal/models"
	"github.com/colorify-app/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GalleryHandler lists and fetches a user's generated images.
type GalleryHandler struct {
	gallery *services.GalleryService
}

func NewGalleryHandler(gallery *services.GalleryService) *GalleryHandler {
	return &GalleryHandler{gallery: gallery}
}

func (h *GalleryHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	images, total, err := h.gallery.ListForUser(c.UserContext(), userID, page, limit)
	if err != nil {
		slog.Error("failed to list images", "user_id", userID.String(), "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load images",
		})
	}

	resp := dto.ImageListResponse{
		Images: make([]dto.GeneratedImageResponse, 0, len(images)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i := range images {
		resp.Images = append(resp.Images, toImageResponse(&images[i]))
	}
	return c.JSON(resp)
}

func (h *GalleryHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	imageID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid image id",
		})
	}

	image, err := h.gallery.ByID(c.UserContext(), userID, imageID)
	if err != nil {
		if errors.Is(err, services.ErrImageNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Image not found",
			})
		}
		slog.Error("failed to load image", "user_id", userID.String(), "image_id", imageID.String(), "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load image",
		})
	}

	return c.JSON(toImageResponse(image))
}

func toImageResponse(img *models.GeneratedImage) dto.GeneratedImageResponse {
	return dto.GeneratedImageResponse{
		ID:               img.ID,
		UserID:           img.UserID,
		OriginalImageURL: img.OriginalImageURL,
		ImageURL:         img.ImageURL,
		Config:           img.Config,
		CreatedAt:        img.CreatedAt,
	}
}
