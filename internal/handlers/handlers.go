package handlers

import (
	"Tianguis/internal/config"
	"Tianguis/internal/middleware"
	"Tianguis/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	userService *service.UserService,
	listingService *service.ListingService,
	logger *zap.SugaredLogger,
	config *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAuth(config.AuthSecret))

	userHandler := NewUserHandler(userService, logger, config)
	listingHandler := NewListingHandler(listingService, logger)

	// User routes
	r.Post("/api/register", userHandler.Register)
	r.Post("/api/login", userHandler.Login)
	r.Get("/api/users", userHandler.List)
	r.Put("/api/users/{key}", userHandler.Update)
	r.Post("/api/users/sync", userHandler.Sync)

	// Listing routes
	r.Get("/api/posts", listingHandler.List)
	r.Post("/api/posts", listingHandler.Create)
	r.Put("/api/posts/{key}", listingHandler.Update)
	r.Post("/api/posts/sync", listingHandler.Sync)

	return &Handler{Router: r}
}
