package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/colorify-app/backend/internal/config"
	"github.com/colorify-app/backend/internal/falclient"
	"github.com/colorify-app/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	sub        *models.Subscription
	subErr     error
	consumeOK  bool
	consumeErr error
	consumes   int
}

func (s *stubLedger) ByUserID(_ context.Context, _ uuid.UUID) (*models.Subscription, error) {
	if s.subErr != nil {
		return nil, s.subErr
	}
	return s.sub, nil
}

func (s *stubLedger) ConsumeCredit(_ context.Context, _ uuid.UUID) (bool, error) {
	s.consumes++
	return s.consumeOK, s.consumeErr
}

type stubHistory struct {
	saved   []*models.GeneratedImage
	saveErr error
	prior   *models.GeneratedImage
}

func (s *stubHistory) SaveGenerated(_ context.Context, img *models.GeneratedImage) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, img)
	return nil
}

func (s *stubHistory) ByIdempotencyKey(_ context.Context, _ uuid.UUID, _ string) (*models.GeneratedImage, error) {
	if s.prior == nil {
		return nil, ErrImageNotFound
	}
	return s.prior, nil
}

type stubGenerator struct {
	result *falclient.Result
	err    error
	calls  int
	last   falclient.GenerateRequest
}

func (s *stubGenerator) Generate(_ context.Context, req falclient.GenerateRequest) (*falclient.Result, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newGenService(cfg *config.Config, ledger *stubLedger, history *stubHistory, gen *stubGenerator) *GenerationService {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return NewGenerationService(cfg, slog.Default(), ledger, history, gen)
}

func subscription(total, used int) *models.Subscription {
	return &models.Subscription{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Plan:         DefaultPlan,
		CreditsTotal: total,
		CreditsUsed:  used,
		IsActive:     true,
	}
}

func TestGenerateSuccess(t *testing.T) {
	ledger := &stubLedger{sub: subscription(5, 0), consumeOK: true}
	history := &stubHistory{}
	gen := &stubGenerator{result: &falclient.Result{Images: []falclient.Image{{URL: "https://cdn.example.com/X.jpg"}}}}
	svc := newGenService(nil, ledger, history, gen)

	out, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/photo.jpg", "")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/X.jpg", out.ImageURL)
	assert.Equal(t, 1, out.CreditsUsed)
	assert.Equal(t, 4, out.CreditsRemaining)
	assert.False(t, out.Deduplicated)
	assert.Empty(t, out.SideEffects)

	require.Len(t, history.saved, 1)
	saved := history.saved[0]
	assert.Equal(t, "https://cdn.example.com/X.jpg", saved.ImageURL)
	assert.Equal(t, saved.ImageURL, saved.OriginalImageURL)
	assert.JSONEq(t, `{"type":"coloring-page"}`, string(saved.Config))
	assert.Equal(t, 1, ledger.consumes)
}

func TestGenerateSendsFixedParameters(t *testing.T) {
	ledger := &stubLedger{sub: subscription(5, 0), consumeOK: true}
	gen := &stubGenerator{result: &falclient.Result{Images: []falclient.Image{{URL: "u"}}}}
	svc := newGenService(nil, ledger, &stubHistory{}, gen)

	_, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/p.jpg", gen.last.ImageURL)
	assert.Equal(t, 5.0, gen.last.GuidanceScale)
	assert.Equal(t, 1, gen.last.NumImages)
	assert.Equal(t, "jpeg", gen.last.OutputFormat)
	assert.Equal(t, 1024, gen.last.Width)
	assert.Equal(t, 1024, gen.last.Height)
	assert.Contains(t, gen.last.Prompt, "BLACK AND WHITE LINE ART ONLY")
}

func TestGenerateExhaustedCreditsMakesNoProviderCall(t *testing.T) {
	ledger := &stubLedger{sub: subscription(5, 5)}
	gen := &stubGenerator{}
	history := &stubHistory{}
	svc := newGenService(nil, ledger, history, gen)

	_, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "")
	require.ErrorIs(t, err, ErrInsufficientCredits)

	assert.Zero(t, gen.calls)
	assert.Empty(t, history.saved)
	assert.Zero(t, ledger.consumes)
}

func TestGenerateNoSubscription(t *testing.T) {
	ledger := &stubLedger{subErr: ErrNoSubscription}
	gen := &stubGenerator{}
	svc := newGenService(nil, ledger, &stubHistory{}, gen)

	_, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "")
	require.ErrorIs(t, err, ErrNoSubscription)
	assert.Zero(t, gen.calls)
}

func TestGenerateProviderFailureLeavesNoState(t *testing.T) {
	ledger := &stubLedger{sub: subscription(5, 0)}
	history := &stubHistory{}
	gen := &stubGenerator{err: falclient.ErrJobTimeout}
	svc := newGenService(nil, ledger, history, gen)

	_, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "")
	require.ErrorIs(t, err, falclient.ErrJobTimeout)

	assert.Empty(t, history.saved)
	assert.Zero(t, ledger.consumes, "a failed generation must not bill")
}

func TestGenerateNoImageProduced(t *testing.T) {
	ledger := &stubLedger{sub: subscription(5, 0)}
	gen := &stubGenerator{result: &falclient.Result{}}
	svc := newGenService(nil, ledger, &stubHistory{}, gen)

	_, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "")
	require.ErrorIs(t, err, ErrNoImageProduced)
	assert.Zero(t, ledger.consumes)
}

func TestGeneratePersistFailureStillSucceeds(t *testing.T) {
	ledger := &stubLedger{sub: subscription(5, 0), consumeOK: true}
	history := &stubHistory{saveErr: errors.New("insert failed")}
	gen := &stubGenerator{result: &falclient.Result{Images: []falclient.Image{{URL: "u"}}}}
	svc := newGenService(nil, ledger, history, gen)

	out, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "")
	require.NoError(t, err, "persistence failure must not surface to the caller")

	require.Len(t, out.SideEffects, 1)
	assert.Equal(t, SideEffectPersistImage, out.SideEffects[0].Name)
	assert.Equal(t, 1, ledger.consumes, "billing still runs after a failed insert")
}

func TestGenerateDeductionRejectedAtCommitStillSucceeds(t *testing.T) {
	ledger := &stubLedger{sub: subscription(5, 0), consumeOK: false}
	gen := &stubGenerator{result: &falclient.Result{Images: []falclient.Image{{URL: "u"}}}}
	svc := newGenService(nil, ledger, &stubHistory{}, gen)

	out, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "")
	require.NoError(t, err)

	require.Len(t, out.SideEffects, 1)
	assert.Equal(t, SideEffectDeductCredit, out.SideEffects[0].Name)
	assert.ErrorIs(t, out.SideEffects[0].Err, ErrInsufficientCredits)
	assert.Equal(t, 4, out.CreditsRemaining, "response balance comes from the pre-update row")
}

func TestGenerateDuplicateSubmissionsBillTwiceByDefault(t *testing.T) {
	ledger := &stubLedger{sub: subscription(5, 0), consumeOK: true}
	history := &stubHistory{}
	gen := &stubGenerator{result: &falclient.Result{Images: []falclient.Image{{URL: "u"}}}}
	svc := newGenService(nil, ledger, history, gen)

	for i := 0; i < 2; i++ {
		_, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "same-key")
		require.NoError(t, err)
	}

	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 2, ledger.consumes)
	assert.Len(t, history.saved, 2)
}

func TestGenerateDeduplicatesWhenEnabled(t *testing.T) {
	cfg := &config.Config{IdempotencyEnabled: true}
	prior := &models.GeneratedImage{ID: uuid.New(), ImageURL: "https://cdn.example.com/prior.jpg"}
	ledger := &stubLedger{sub: subscription(5, 1), consumeOK: true}
	history := &stubHistory{prior: prior}
	gen := &stubGenerator{}
	svc := newGenService(cfg, ledger, history, gen)

	out, err := svc.Generate(context.Background(), uuid.New(), "https://example.com/p.jpg", "same-key")
	require.NoError(t, err)

	assert.True(t, out.Deduplicated)
	assert.Equal(t, "https://cdn.example.com/prior.jpg", out.ImageURL)
	assert.Zero(t, out.CreditsUsed)
	assert.Equal(t, 4, out.CreditsRemaining)
	assert.Zero(t, gen.calls, "dedupe must not resubmit")
	assert.Zero(t, ledger.consumes, "dedupe must not bill")
}

func TestGenerateEmptyImageURL(t *testing.T) {
	svc := newGenService(nil, &stubLedger{}, &stubHistory{}, &stubGenerator{})
	_, err := svc.Generate(context.Background(), uuid.New(), "", "")
	require.Error(t, err)
}
