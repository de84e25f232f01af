package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/colorify-app/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrImageNotFound = errors.New("generated image not found")

// GalleryService reads and writes the generated_images history.
type GalleryService struct {
	db *gorm.DB
}

func NewGalleryService(db *gorm.DB) *GalleryService {
	return &GalleryService{db: db}
}

// SaveGenerated inserts one immutable history row.
func (s *GalleryService) SaveGenerated(ctx context.Context, img *models.GeneratedImage) error {
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("failed to save generated image: %w", err)
	}
	return nil
}

// ByIdempotencyKey finds a prior generation for the same user and key.
func (s *GalleryService) ByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.GeneratedImage, error) {
	var img models.GeneratedImage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to fetch generated image: %w", err)
	}
	return &img, nil
}

// ListForUser returns the caller's coloring pages, newest first. Rows from
// other product lines sharing the table are filtered out by config type.
func (s *GalleryService) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.GeneratedImage, int64, error) {
	var images []models.GeneratedImage
	var total int64

	query := s.db.WithContext(ctx).Model(&models.GeneratedImage{}).
		Where("user_id = ?", userID).
		Where(datatypes.JSONQuery("config").Equals(models.ConfigTypeColoringPage, "type"))

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count generated images: %w", err)
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&images).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch generated images: %w", err)
	}

	return images, total, nil
}

// ByID returns one row, owner-checked.
func (s *GalleryService) ByID(ctx context.Context, userID, imageID uuid.UUID) (*models.GeneratedImage, error) {
	var img models.GeneratedImage
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", imageID, userID).
		First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to fetch generated image: %w", err)
	}
	return &img, nil
}
