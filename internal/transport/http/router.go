package http

import (
	"context"
	"net/http"

	"github.com/catalog-reviews/internal/application/auth"
	"github.com/catalog-reviews/internal/application/comment"
	"github.com/catalog-reviews/internal/application/review"
	"github.com/catalog-reviews/internal/application/title"
	"github.com/catalog-reviews/internal/application/user"
	"github.com/catalog-reviews/internal/config"
	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/transport/http/handler"
	appmiddleware "github.com/catalog-reviews/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router, such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.AuthRateLimit), cfg.AuthRateBurst)

	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo})
	authSvc := auth.NewService(auth.ServiceDeps{
		Users:    userSvc,
		Codes:    deps.Codes,
		Tokens:   deps.Tokens,
		Notifier: deps.Notifier,
	})
	reviewSvc := review.NewService(review.ServiceDeps{
		ReviewRepo:  deps.ReviewRepo,
		TitleRepo:   deps.TitleRepo,
		CommentRepo: deps.CommentRepo,
	})
	titleSvc := title.NewService(title.ServiceDeps{TitleRepo: deps.TitleRepo, Reviews: reviewSvc})
	commentSvc := comment.NewService(comment.ServiceDeps{CommentRepo: deps.CommentRepo, Reviews: reviewSvc})

	healthH := handler.NewHealthHandler(deps.Ready)
	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)
	titleH := handler.NewTitleHandler(titleSvc)
	reviewH := handler.NewReviewHandler(reviewSvc)
	commentH := handler.NewCommentHandler(commentSvc)

	r.Get("/healthz", healthH.Live)
	r.Get("/readyz", healthH.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.With(authRL.Limit).Post("/auth/signup", authH.Signup)
		r.With(authRL.Limit).Post("/auth/token", authH.Token)

		// ── Catalog: anonymous reads, writes checked per object ──────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.OptionalAuth(authSvc))

			r.Get("/titles", titleH.List)
			r.Post("/titles", titleH.Create)
			r.Route("/titles/{titleID}", func(r chi.Router) {
				r.Get("/", titleH.Get)
				r.Patch("/", titleH.Update)
				r.Delete("/", titleH.Delete)

				r.Get("/reviews", reviewH.List)
				r.Post("/reviews", reviewH.Create)
				r.Route("/reviews/{reviewID}", func(r chi.Router) {
					r.Get("/", reviewH.Get)
					r.Patch("/", reviewH.Update)
					r.Delete("/", reviewH.Delete)

					r.Get("/comments", commentH.List)
					r.Post("/comments", commentH.Create)
					r.Get("/comments/{commentID}", commentH.Get)
					r.Patch("/comments/{commentID}", commentH.Update)
					r.Delete("/comments/{commentID}", commentH.Delete)
				})
			})
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(authSvc))

			r.Get("/users/me", userH.Me)
			r.Patch("/users/me", userH.UpdateMe)

			// Admin-only user directory
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
				r.Post("/users", userH.Create)
				r.Get("/users/{username}", userH.Get)
				r.Patch("/users/{username}", userH.Update)
				r.Put("/users/{username}/role", userH.SetRole)
			})
		})
	})

	return r
}
