package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/colorify-app/backend/internal/config"
	"github.com/colorify-app/backend/internal/falclient"
	"github.com/colorify-app/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrInsufficientCredits = errors.New("no credits remaining")
	ErrNoImageProduced     = errors.New("no image generated")
)

// coloringPagePrompt is the fixed instruction sent with every job. The
// product generates exactly one kind of output.
const coloringPagePrompt = `Turn this image into a coloring page for a child.

CRITICAL REQUIREMENTS:
- Create BLACK AND WHITE LINE ART ONLY
- Use CLEAN, BOLD OUTLINES suitable for coloring with crayons or markers
- NO filled colors, NO grayscale shading, NO gradients
- Simple, clear lines that a child can easily color inside
- Remove complex details that would be hard to color
- Make it FUN and APPEALING for children
- Keep the main subject recognizable but simplified
- Use thick, continuous lines for easy coloring
- Leave plenty of white space for coloring
- Style: Classic coloring book illustration

OUTPUT: A clean black and white coloring page with bold outlines, ready to be printed and colored by a child.`

// ImageGenerator abstracts the provider so the workflow is testable without
// network calls or real delays.
type ImageGenerator interface {
	Generate(ctx context.Context, req falclient.GenerateRequest) (*falclient.Result, error)
}

// SubscriptionLedger is the slice of SubscriptionService the workflow needs.
type SubscriptionLedger interface {
	ByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ConsumeCredit(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ImageHistory is the slice of GalleryService the workflow needs.
type ImageHistory interface {
	SaveGenerated(ctx context.Context, img *models.GeneratedImage) error
	ByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.GeneratedImage, error)
}

// SideEffect records the outcome of one best-effort write that runs after
// the generation result is already determined.
type SideEffect struct {
	Name string
	Err  error
}

const (
	SideEffectPersistImage = "persist_image"
	SideEffectDeductCredit = "deduct_credit"
)

// GenerateOutcome separates the primary result from the secondary-write
// outcomes so callers and tests can assert on both without conflating them.
type GenerateOutcome struct {
	ImageURL         string
	CreditsUsed      int
	CreditsRemaining int
	Deduplicated     bool
	SideEffects      []SideEffect
}

// GenerationService turns one authenticated generate request into one
// billed, persisted coloring page, or fails cleanly without billing.
type GenerationService struct {
	cfg       *config.Config
	log       *slog.Logger
	subs      SubscriptionLedger
	images    ImageHistory
	generator ImageGenerator
}

func NewGenerationService(cfg *config.Config, log *slog.Logger, subs SubscriptionLedger, images ImageHistory, generator ImageGenerator) *GenerationService {
	return &GenerationService{
		cfg:       cfg,
		log:       log,
		subs:      subs,
		images:    images,
		generator: generator,
	}
}

// Generate runs the full workflow: credit check, job submission, blocking
// poll, best-effort persistence, best-effort deduction. Every failure before
// submission leaves the subscription and history untouched; failures after
// the result is in hand are reported as side effects, not errors.
func (s *GenerationService) Generate(ctx context.Context, userID uuid.UUID, imageURL, idempotencyKey string) (*GenerateOutcome, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("imageUrl cannot be empty")
	}

	sub, err := s.subs.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	remaining := sub.CreditsRemaining()
	if remaining < 1 {
		return nil, ErrInsufficientCredits
	}

	if s.cfg.IdempotencyEnabled && idempotencyKey != "" {
		if prior, err := s.images.ByIdempotencyKey(ctx, userID, idempotencyKey); err == nil {
			s.log.Info("duplicate generate request deduplicated",
				"user_id", userID.String(), "idempotency_key", idempotencyKey)
			return &GenerateOutcome{
				ImageURL:         prior.ImageURL,
				CreditsUsed:      0,
				CreditsRemaining: remaining,
				Deduplicated:     true,
			}, nil
		}
	}

	result, err := s.generator.Generate(ctx, falclient.GenerateRequest{
		Prompt:        coloringPagePrompt,
		ImageURL:      imageURL,
		GuidanceScale: 5.0,
		NumImages:     1,
		OutputFormat:  "jpeg",
		Width:         1024,
		Height:        1024,
	})
	if err != nil {
		return nil, err
	}

	if len(result.Images) == 0 || result.Images[0].URL == "" {
		return nil, ErrNoImageProduced
	}
	generatedURL := result.Images[0].URL

	// The balance in the response is computed from the row read before the
	// deduction, not re-read from storage.
	outcome := &GenerateOutcome{
		ImageURL:         generatedURL,
		CreditsUsed:      1,
		CreditsRemaining: remaining - 1,
	}

	// Best effort from here on: the user gets the image even if history or
	// billing writes fail. Discrepancies are logged loudly for reconciliation.
	// The source photo is not stored; both URL fields carry the result.
	img := &models.GeneratedImage{
		ID:               uuid.New(),
		UserID:           userID,
		OriginalImageURL: generatedURL,
		ImageURL:         generatedURL,
		Config:           datatypes.JSON(fmt.Sprintf(`{"type":%q}`, models.ConfigTypeColoringPage)),
	}
	if s.cfg.IdempotencyEnabled && idempotencyKey != "" {
		key := idempotencyKey
		img.IdempotencyKey = &key
	}
	if err := s.images.SaveGenerated(ctx, img); err != nil {
		s.log.Error("generated image not persisted",
			"action", SideEffectPersistImage, "user_id", userID.String(), "error", err.Error())
		outcome.SideEffects = append(outcome.SideEffects, SideEffect{Name: SideEffectPersistImage, Err: err})
	}

	ok, err := s.subs.ConsumeCredit(ctx, userID)
	switch {
	case err != nil:
		s.log.Error("credit deduction failed",
			"action", SideEffectDeductCredit, "user_id", userID.String(), "error", err.Error())
		outcome.SideEffects = append(outcome.SideEffects, SideEffect{Name: SideEffectDeductCredit, Err: err})
	case !ok:
		// A concurrent request spent the last credit between our pre-check
		// and the conditional UPDATE.
		s.log.Error("credit deduction rejected at commit time",
			"action", SideEffectDeductCredit, "user_id", userID.String(), "error", ErrInsufficientCredits.Error())
		outcome.SideEffects = append(outcome.SideEffects, SideEffect{Name: SideEffectDeductCredit, Err: ErrInsufficientCredits})
	}

	return outcome, nil
}
