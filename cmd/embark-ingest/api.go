// Package main provides the Embark ingestion API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/embarkhq/embark/pkg/journey"
	"github.com/embarkhq/embark/pkg/web"
)

type API struct {
	logger   *slog.Logger
	service  *journey.Service
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, service *journey.Service) *API {
	return &API{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewHandlers(a.service, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Embark Ingest API")
	})

	v1 := app.Group("/v1/projects/:project")
	v1.Post("/events", handlers.TrackEvent)
	v1.Put("/users/:id", handlers.UpdateUser)
	v1.Get("/journeys/:id/stats", handlers.JourneyStats)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
