package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/colorify-app/backend/internal/config"
	"github.com/colorify-app/backend/internal/dto"
	"github.com/colorify-app/backend/internal/falclient"
	"github.com/colorify-app/backend/internal/models"
	"github.com/colorify-app/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	sub       *models.Subscription
	subErr    error
	consumeOK bool
}

func (f *fakeLedger) ByUserID(context.Context, uuid.UUID) (*models.Subscription, error) {
	return f.sub, f.subErr
}

func (f *fakeLedger) ConsumeCredit(context.Context, uuid.UUID) (bool, error) {
	return f.consumeOK, nil
}

type fakeHistory struct{}

func (f *fakeHistory) SaveGenerated(context.Context, *models.GeneratedImage) error {
	return nil
}

func (f *fakeHistory) ByIdempotencyKey(context.Context, uuid.UUID, string) (*models.GeneratedImage, error) {
	return nil, services.ErrImageNotFound
}

type fakeGenerator struct {
	result *falclient.Result
	err    error
}

func (f *fakeGenerator) Generate(context.Context, falclient.GenerateRequest) (*falclient.Result, error) {
	return f.result, f.err
}

// newGenerateApp wires the handler behind a stand-in for the JWT middleware
// that injects the given user into the request context.
func newGenerateApp(ledger *fakeLedger, generator *fakeGenerator, userID uuid.UUID) *fiber.App {
	cfg := &config.Config{FalAPIKey: "fal-test-key"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := services.NewGenerationService(cfg, log, ledger, &fakeHistory{}, generator)
	handler := NewGenerateHandler(cfg, svc)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"sub": userID.String()}})
		return c.Next()
	})
	app.Post("/api/colorify/generate", handler.Generate)
	return app
}

func postGenerate(t *testing.T, app *fiber.App, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/colorify/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, payload
}

func TestGenerateEndpointSuccess(t *testing.T) {
	ledger := &fakeLedger{
		sub:       &models.Subscription{CreditsTotal: 5, CreditsUsed: 2, IsActive: true},
		consumeOK: true,
	}
	generator := &fakeGenerator{result: &falclient.Result{
		Images: []falclient.Image{{URL: "https://cdn.example.com/page.jpg"}},
	}}
	app := newGenerateApp(ledger, generator, uuid.New())

	status, body := postGenerate(t, app, `{"imageUrl":"https://example.com/photo.jpg"}`)
	require.Equal(t, fiber.StatusOK, status)

	var resp dto.GenerateResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "https://cdn.example.com/page.jpg", resp.GeneratedImageURL)
	assert.Equal(t, 1, resp.CreditsUsed)
	assert.Equal(t, 2, resp.CreditsRemaining)
}

func TestGenerateEndpointMissingImageURL(t *testing.T) {
	app := newGenerateApp(&fakeLedger{}, &fakeGenerator{}, uuid.New())

	status, body := postGenerate(t, app, `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(body), "imageUrl")
}

func TestGenerateEndpointNoSubscription(t *testing.T) {
	ledger := &fakeLedger{subErr: services.ErrNoSubscription}
	app := newGenerateApp(ledger, &fakeGenerator{}, uuid.New())

	status, body := postGenerate(t, app, `{"imageUrl":"https://example.com/photo.jpg"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Contains(t, string(body), "Subscription not found")
}

func TestGenerateEndpointNoCredits(t *testing.T) {
	ledger := &fakeLedger{sub: &models.Subscription{CreditsTotal: 5, CreditsUsed: 5}}
	app := newGenerateApp(ledger, &fakeGenerator{}, uuid.New())

	status, body := postGenerate(t, app, `{"imageUrl":"https://example.com/photo.jpg"}`)
	assert.Equal(t, fiber.StatusPaymentRequired, status)
	assert.Contains(t, string(body), "No credits remaining")
}

func TestGenerateEndpointProviderFailure(t *testing.T) {
	ledger := &fakeLedger{sub: &models.Subscription{CreditsTotal: 5}}
	generator := &fakeGenerator{err: falclient.ErrJobFailed}
	app := newGenerateApp(ledger, generator, uuid.New())

	status, body := postGenerate(t, app, `{"imageUrl":"https://example.com/photo.jpg"}`)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, string(body), "Failed to generate image")
	// provider detail must not leak to the client
	assert.NotContains(t, string(body), falclient.ErrJobFailed.Error())
}

func TestGenerateEndpointTimeout(t *testing.T) {
	ledger := &fakeLedger{sub: &models.Subscription{CreditsTotal: 5}}
	generator := &fakeGenerator{err: falclient.ErrJobTimeout}
	app := newGenerateApp(ledger, generator, uuid.New())

	status, body := postGenerate(t, app, `{"imageUrl":"https://example.com/photo.jpg"}`)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, string(body), "timeout")
}
