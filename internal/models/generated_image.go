package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GeneratedImage is one successful generation. Rows are immutable: never
// updated, never deleted. The source photo is not retained — both URL fields
// carry the generated result to keep large encoded payloads out of the table.
type GeneratedImage struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_generated_images_user_idem" json:"user_id"`
	OriginalImageURL string         `gorm:"type:text;not null" json:"original_image_url"`
	ImageURL         string         `gorm:"type:text;not null" json:"image_url"`
	Config           datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"config"`
	IdempotencyKey   *string        `gorm:"size:128;uniqueIndex:idx_generated_images_user_idem" json:"-"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
}

// ConfigTypeColoringPage distinguishes coloring-page rows from other product
// lines that share this table.
const ConfigTypeColoringPage = "coloring-page"
