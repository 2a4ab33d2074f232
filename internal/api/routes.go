package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/search", h.Search)
	api.Get("/files/dependencies", h.FileDependencies)
	api.Get("/impact", h.Impact)
	api.Get("/status", h.Status)

	git := api.Group("/git")
	git.Post("/sync", h.GitSync)
	git.Get("/status", h.GitStatus)
}
