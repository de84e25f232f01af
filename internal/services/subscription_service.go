package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/colorify-app/backend/internal/dto"
	"github.com/colorify-app/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNoSubscription = errors.New("subscription not found")

// Default plan for users who arrive without a subscription row.
const (
	DefaultPlan        = "starter"
	DefaultCreditTotal = 5
)

// planCatalog maps billing product IDs to plan names and credit allotments.
type planSpec struct {
	Plan    string
	Credits int
}

var planCatalog = map[string]planSpec{
	"colorify_starter": {Plan: "starter", Credits: 5},
	"colorify_family":  {Plan: "family", Credits: 20},
	"colorify_studio":  {Plan: "studio", Credits: 50},
}

type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// ByUserID loads the caller's subscription. It never creates one — creation
// on first use belongs to GetOrCreate, which backs the subscription reader.
func (s *SubscriptionService) ByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &sub, nil
}

// GetOrCreate returns the subscription, creating the default starter row on
// first access. A concurrent creator winning the unique index race is fine:
// we just re-read.
func (s *SubscriptionService) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.ByUserID(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrNoSubscription) {
		return nil, err
	}

	created := models.Subscription{
		ID:           uuid.New(),
		UserID:       userID,
		Plan:         DefaultPlan,
		CreditsTotal: DefaultCreditTotal,
		CreditsUsed:  0,
		IsActive:     true,
	}
	if createErr := s.db.WithContext(ctx).Create(&created).Error; createErr != nil {
		if sub, err := s.ByUserID(ctx, userID); err == nil {
			return sub, nil
		}
		return nil, fmt.Errorf("failed to create subscription: %w", createErr)
	}

	return &created, nil
}

// ConsumeCredit spends one credit if and only if any remain, as a single
// conditional UPDATE. Zero rows affected means a concurrent request took the
// last credit between our pre-check and this statement.
func (s *SubscriptionService) ConsumeCredit(ctx context.Context, userID uuid.UUID) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND credits_used < credits_total", userID).
		UpdateColumns(map[string]interface{}{
			"credits_used": gorm.Expr("credits_used + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to deduct credit: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// HandleWebhookEvent applies one billing provider event to the caller's
// subscription row.
func (s *SubscriptionService) HandleWebhookEvent(ctx context.Context, event *dto.BillingEvent) error {
	userID, err := uuid.Parse(event.AppUserID)
	if err != nil {
		return fmt.Errorf("invalid app_user_id %q: %w", event.AppUserID, err)
	}

	switch event.Type {
	case "INITIAL_PURCHASE", "RENEWAL":
		return s.applyPurchase(ctx, userID, event)
	case "CANCELLATION", "EXPIRATION":
		return s.deactivate(ctx, userID)
	default:
		slog.Info("ignoring billing event", "event_type", event.Type)
		return nil
	}
}

func (s *SubscriptionService) applyPurchase(ctx context.Context, userID uuid.UUID, event *dto.BillingEvent) error {
	spec, ok := planCatalog[event.ProductID]
	if !ok {
		slog.Warn("unknown billing product, applying default plan", "product_id", event.ProductID)
		spec = planSpec{Plan: DefaultPlan, Credits: DefaultCreditTotal}
	}

	renewal := msToTime(event.ExpirationAtMs)

	sub, err := s.ByUserID(ctx, userID)
	if errors.Is(err, ErrNoSubscription) {
		created := models.Subscription{
			ID:           uuid.New(),
			UserID:       userID,
			Plan:         spec.Plan,
			CreditsTotal: spec.Credits,
			CreditsUsed:  0,
			IsActive:     true,
			RenewalDate:  &renewal,
		}
		return s.db.WithContext(ctx).Create(&created).Error
	}
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(sub).Updates(map[string]interface{}{
		"plan":          spec.Plan,
		"credits_total": spec.Credits,
		"credits_used":  0,
		"is_active":     true,
		"renewal_date":  renewal,
	}).Error
}

func (s *SubscriptionService) deactivate(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("is_active", false).Error
}

func msToTime(ms int64) time.Time {
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond))
}
