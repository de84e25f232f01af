package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription tracks one user's plan and credit ledger. credits_used only
// ever grows; the generation flow deducts via a conditional UPDATE so it can
// never pass credits_total.
type Subscription struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Plan         string     `gorm:"size:50;not null;default:'starter'" json:"plan"`
	CreditsTotal int        `gorm:"not null;default:5" json:"credits_total"`
	CreditsUsed  int        `gorm:"not null;default:0" json:"credits_used"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	RenewalDate  *time.Time `json:"renewal_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CreditsRemaining is derived, never stored.
func (s *Subscription) CreditsRemaining() int {
	return s.CreditsTotal - s.CreditsUsed
}
