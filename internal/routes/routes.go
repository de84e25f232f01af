package routes

import (
	"time"

	"github.com/colorify-app/backend/internal/config"
	"github.com/colorify-app/backend/internal/handlers"
	"github.com/colorify-app/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	generateHandler *handlers.GenerateHandler,
	galleryHandler *handlers.GalleryHandler,
	adminImagesHandler *handlers.AdminImagesHandler,
	webhookHandler *handlers.WebhookHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth — public, with a stricter rate limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	// Protected routes (JWT required) - apply middleware per route so the
	// public routes above stay unaffected
	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	api.Get("/subscription", middleware.JWTProtected(cfg), subscriptionHandler.Get)
	api.Post("/colorify/generate", middleware.JWTProtected(cfg), generateHandler.Generate)
	api.Get("/images", middleware.JWTProtected(cfg), galleryHandler.List)
	api.Get("/images/:id", middleware.JWTProtected(cfg), galleryHandler.Get)

	// Admin landing-page assets (protected + admin required)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Post("/landing-images", adminImagesHandler.Upload)
	admin.Get("/landing-images", adminImagesHandler.List)

	// Webhooks — shared-secret auth, no JWT
	webhooks := api.Group("/webhooks")
	webhooks.Post("/billing", webhookHandler.Billing)
}
