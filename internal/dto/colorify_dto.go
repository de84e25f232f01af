package dto

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type GenerateRequest struct {
	// ImageURL is either a public URL or a data URL the provider can fetch.
	ImageURL string `json:"imageUrl"`
}

type GenerateResponse struct {
	Success           bool   `json:"success"`
	GeneratedImageURL string `json:"generatedImageUrl"`
	CreditsUsed       int    `json:"creditsUsed"`
	CreditsRemaining  int    `json:"creditsRemaining"`
}

type SubscriptionResponse struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Plan             string     `json:"plan"`
	CreditsTotal     int        `json:"credits_total"`
	CreditsUsed      int        `json:"credits_used"`
	CreditsRemaining int        `json:"credits_remaining"`
	IsActive         bool       `json:"is_active"`
	RenewalDate      *time.Time `json:"renewal_date,omitempty"`
}

type GeneratedImageResponse struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	OriginalImageURL string         `json:"original_image_url"`
	ImageURL         string         `json:"image_url"`
	Config           datatypes.JSON `json:"config"`
	CreatedAt        time.Time      `json:"created_at"`
}

type ImageListResponse struct {
	Images []GeneratedImageResponse `json:"images"`
	Total  int64                    `json:"total"`
	Page   int                      `json:"page"`
	Limit  int                      `json:"limit"`
}

type LandingImageResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
