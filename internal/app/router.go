package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/bulatminnakhmetov/property-site/internal/client/email"
	"github.com/bulatminnakhmetov/property-site/internal/config"
	authhandler "github.com/bulatminnakhmetov/property-site/internal/handler/auth"
	"github.com/bulatminnakhmetov/property-site/internal/handler/events"
	"github.com/bulatminnakhmetov/property-site/internal/handler/inquiry"
	mediahandler "github.com/bulatminnakhmetov/property-site/internal/handler/media"
	propertyhandler "github.com/bulatminnakhmetov/property-site/internal/handler/property"
	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	"github.com/bulatminnakhmetov/property-site/internal/logger"
	authservice "github.com/bulatminnakhmetov/property-site/internal/service/auth"
	mediaservice "github.com/bulatminnakhmetov/property-site/internal/service/media"
	propertyservice "github.com/bulatminnakhmetov/property-site/internal/service/property"

	_ "github.com/bulatminnakhmetov/property-site/docs"
)

// NewRouter wires services and handlers on top of the backends.
func NewRouter(cfg *config.Config, b *Backends, log *zap.Logger) http.Handler {
	sugar := log.Sugar()
	responder := respond.NewResponder(sugar, b.Status)

	hub := events.NewHandler(responder, sugar)
	mediaService := mediaservice.NewMediaService(b.Objects, b.Listings, hub, sugar, mediaservice.Config{
		ReadTTL:  cfg.Media.ReadURLTTL,
		WriteTTL: cfg.Media.WriteURLTTL,
		MaxBytes: cfg.Media.MaxUploadBytes,
	})
	propertyService := propertyservice.NewPropertyService(b.Listings, b.Objects, cfg.ContentDir, cfg.Media.ReadURLTTL, sugar)
	authService := authservice.NewAuthService(b.Verifier, authservice.ParseAllowlist(cfg.Auth.Allowlist), b.Status)

	authHandler := authhandler.NewAuthHandler(authService, responder)
	mediaHandler := mediahandler.NewMediaHandler(mediaService, responder, cfg.Media.MaxUploadBytes, sugar)
	propertyHandler := propertyhandler.NewPropertyHandler(propertyService, responder)
	inquiryHandler := inquiry.NewInquiryHandler(email.NewLogProvider(sugar), cfg.InquiryEmail, responder, sugar)

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		responder.JSON(w, http.StatusOK, respond.Envelope{OK: true})
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Get("/properties", propertyHandler.List)
			r.Get("/properties/{slug}", propertyHandler.Public)
			r.Post("/inquire", inquiryHandler.Inquire)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.Timeout(timeout)).Get("/me", authHandler.Me)

			r.Group(func(r chi.Router) {
				r.Use(authHandler.Middleware)

				// Long-lived; no request timeout.
				r.Get("/events", hub.HandleWebSocket)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(timeout))

					r.Get("/media", mediaHandler.List)
					r.Post("/media", mediaHandler.SaveManifest)
					r.Delete("/media", mediaHandler.Delete)
					r.Post("/media/spaces", mediaHandler.AddSpace)
					r.Post("/media/spaces/assign", mediaHandler.AssignSpace)
					r.Post("/media/spaces/move", mediaHandler.MoveGroup)
					r.Post("/media/reorder", mediaHandler.Reorder)
					r.Post("/media/documents/label", mediaHandler.RenameDocument)
					r.Post("/upload", mediaHandler.Upload)
					r.Post("/upload/batch", mediaHandler.UploadBatch)
					r.Post("/upload-url", mediaHandler.UploadURL)
					r.Get("/property", propertyHandler.Get)
					r.Post("/property", propertyHandler.Save)
				})
			})
		})
	})
	return r
}
