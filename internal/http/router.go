package http

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/redmonkez12/bookshelf/internal/auth"
	"github.com/redmonkez12/bookshelf/internal/book"
	"github.com/redmonkez12/bookshelf/internal/config"
	"github.com/redmonkez12/bookshelf/internal/httputil"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/web"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, authHandler *auth.Handler, bookHandler *book.Handler, authMiddleware *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders(storageOrigin(cfg.Storage.Endpoint)...))
	r.Use(NoCache)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)
	r.Handle("/static/*", web.StaticHandler())

	// Public pages
	r.Get("/", authHandler.LoginPage)
	r.Post("/", authHandler.Login)
	r.Post("/login", authHandler.Login)
	r.Get("/signup", authHandler.SignUpPage)
	r.Post("/signup", authHandler.SignUp)
	r.Get("/forgot-password", authHandler.ForgotPasswordPage)
	r.Post("/forgot-password", authHandler.ForgotPassword)

	// The reset token in the path authenticates these, not the cookie
	r.Get("/reset-password/{token}", authHandler.ResetPasswordPage)
	r.Post("/reset-password/{token}", authHandler.ResetPassword)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)

		r.Get("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.LoadUser)

			r.Get("/profile", authHandler.Profile)
			r.Post("/updateProfile", authHandler.UpdateProfile)

			r.Get("/home", bookHandler.Home)
			r.Get("/addBook", bookHandler.AddBookPage)
			r.Post("/addBook", bookHandler.AddBook)
			r.Get("/editBook/{id}", bookHandler.EditBookPage)
			r.Post("/editBook/{id}", bookHandler.EditBook)
			r.Post("/deleteBook/{id}", bookHandler.DeleteBook)
			r.Post("/filter", bookHandler.Filter)
			r.Post("/search", bookHandler.Search)
		})
	})

	return r
}

// storageOrigin returns the scheme and host of a custom S3 endpoint
func storageOrigin(endpoint string) []string {
	if endpoint == "" {
		return nil
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}

	return []string{u.Scheme + "://" + u.Host}
}

// handleHealth is a simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
}
