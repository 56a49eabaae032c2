package api

import (
	"github.com/bilgisen/newsroom/internal/middleware"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// RouteConfig carries what SetupRoutes needs beyond the handlers
type RouteConfig struct {
	// AuthToken guards the news endpoints. Empty disables the check.
	AuthToken string
	// UploadDir is served under /public/upload when set
	UploadDir string
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, handlers *Handlers, cfg RouteConfig) {
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	if cfg.UploadDir != "" {
		app.Static("/public/upload", cfg.UploadDir, fiber.Static{
			Browse: false,
		})
	}

	app.Get("/api/health", handlers.HealthCheck)

	auth := middleware.TokenAuth(middleware.AuthConfig{Token: cfg.AuthToken})
	register := func(news fiber.Router) {
		news.Post("/save", auth, handlers.SaveNews)
		news.Get("/list", auth, middleware.ValidateQuery[ListQuery](), handlers.ListNews)
		news.Get("/one", auth, handlers.GetNews)
		news.Post("/delete", auth, handlers.DeleteNews)
	}

	register(app.Group("/api/news"))

	// API group with versioning
	v1 := app.Group("/api/v1")
	v1.Get("/health", handlers.HealthCheck)
	register(v1.Group("/news"))

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(models.Envelope{
			Code: models.CodeNotFound,
			Msg:  "endpoint not found",
		})
	})
}
