package routes

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/jmcgarr/nimbus/internal/auth"
	"github.com/jmcgarr/nimbus/internal/blob"
	"github.com/jmcgarr/nimbus/internal/config"
	"github.com/jmcgarr/nimbus/internal/handlers"
	"github.com/jmcgarr/nimbus/internal/vfs"
)

// Setup wires the API routes onto the provided chi.Router: auth and
// OAuth flows, the file and folder endpoints, and the health and
// metrics endpoints. Login, registration and the OAuth callback share
// a per-IP rate limit of 5 attempts per 15 minutes.
func Setup(r chi.Router, db *gorm.DB, cfg *config.Config, blobs blob.Store, tokens *auth.TokenIssuer, oauthHandler *handlers.OAuthHandler, version string) {
	paths := vfs.NewResolver(blobs.PublicURL(""))
	files := vfs.NewService(db, blobs, paths)

	authHandler := handlers.NewAuthHandler(db, cfg, tokens, blobs, paths)
	fileHandler := handlers.NewFileHandler(cfg, files)
	healthHandler := handlers.NewHealthHandler(db, blobs, version)

	authRateLimiter := tollbooth.NewLimiter(5.0/15.0, &limiter.ExpirableOptions{
		DefaultExpirationTTL: 15 * time.Minute,
	})
	authRateLimiter.SetMessage(`{"error":"Too many requests. Please try again later."}`)
	authRateLimiter.SetMessageContentType("application/json")
	rateLimited := func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(authRateLimiter, next)
	}

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rateLimited)
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Post("/logout", authHandler.Logout)
				r.Get("/user", authHandler.CurrentUser)
				r.Put("/update-profile", authHandler.UpdateProfile)
				r.Post("/upload-avatar", authHandler.UploadAvatar)
			})
		})

		r.Route("/oauth", func(r chi.Router) {
			r.Get("/google-url", oauthHandler.GoogleURL)
			r.With(rateLimited).Post("/google-callback", oauthHandler.GoogleCallback)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/user-details", authHandler.UserDetails)
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/upload-multiple", fileHandler.UploadMultiple)
			r.Get("/recent-files", fileHandler.RecentFiles)
			r.Get("/trash-files", fileHandler.TrashFiles)
			r.Get("/file-details", fileHandler.FileDetails)
			r.Post("/delete-multiple", fileHandler.DeleteMultiple)
			r.Post("/create-folder", fileHandler.CreateFolder)
			r.Get("/user-folders", fileHandler.UserFolders)
			r.Delete("/delete-folder", fileHandler.DeleteFolder)
			r.Put("/move-file", fileHandler.MoveFile)
		})
	})
}
