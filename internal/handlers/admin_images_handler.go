package handlers

import (
	"io"
	"log/slog"

	"github.com/colorify-app/backend/internal/dto"
	"github.com/colorify-app/backend/internal/storage"
	"github.com/gofiber/fiber/v2"
)

const maxLandingAssetSize = 10 << 20 // 10 MiB

var allowedLandingContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"video/mp4":  true,
}

// AdminImagesHandler manages landing-page assets in object storage.
// The uploader is nil when S3 is not configured.
type AdminImagesHandler struct {
	uploader *storage.Uploader
}

func NewAdminImagesHandler(uploader *storage.Uploader) *AdminImagesHandler {
	return &AdminImagesHandler{uploader: uploader}
}

func (h *AdminImagesHandler) Upload(c *fiber.Ctx) error {
	if h.uploader == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Storage is not configured",
		})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Missing required file: image",
		})
	}
	if fileHeader.Size > maxLandingAssetSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{
			Error: true, Message: "File exceeds the 10MB limit",
		})
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedLandingContentTypes[contentType] {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Unsupported content type",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error("failed to open uploaded file", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to read upload",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxLandingAssetSize+1))
	if err != nil {
		slog.Error("failed to read uploaded file", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to read upload",
		})
	}
	if len(data) > maxLandingAssetSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{
			Error: true, Message: "File exceeds the 10MB limit",
		})
	}

	key, url, err := h.uploader.Upload(c.UserContext(), data, contentType, c.FormValue("fileName"))
	if err != nil {
		slog.Error("landing asset upload failed", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Upload failed",
		})
	}

	return c.JSON(dto.LandingImageResponse{Key: key, URL: url})
}

func (h *AdminImagesHandler) List(c *fiber.Ctx) error {
	if h.uploader == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Storage is not configured",
		})
	}

	keys, err := h.uploader.List(c.UserContext())
	if err != nil {
		slog.Error("failed to list landing assets", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list assets",
		})
	}

	resp := make([]dto.LandingImageResponse, 0, len(keys))
	for _, key := range keys {
		resp = append(resp, dto.LandingImageResponse{Key: key, URL: h.uploader.PublicURL(key)})
	}
	return c.JSON(resp)
}
