package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tasktrack/attachments/internal/api"
	apiMiddleware "github.com/tasktrack/attachments/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	if app.metrics != nil {
		r.Use(app.metrics.Middleware)
	}

	attachmentHandler := api.NewAttachmentHandler(
		app.attachmentService,
		app.config.Attachments.MaxFileSizeBytes,
	)

	r.Route("/api/task-attachments", func(r chi.Router) {
		r.Use(apiMiddleware.ActingUser)
		r.Mount("/", attachmentHandler.Routes())
	})

	if app.metrics != nil {
		r.Handle("/metrics", app.metrics.Handler())
	}

	return r
}
