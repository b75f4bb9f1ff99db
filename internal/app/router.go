package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tuneder/tuneder/internal/artists"
	"github.com/tuneder/tuneder/internal/auth"
	"github.com/tuneder/tuneder/internal/favorites"
	"github.com/tuneder/tuneder/internal/observability"
	"github.com/tuneder/tuneder/internal/quiz"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/view"
	"github.com/tuneder/tuneder/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	FavoritesHandler *favorites.Handler
	QuizHandler      *quiz.Handler
	ArtistsHandler   *artists.Handler
	Metrics          *observability.Metrics
	// Uploads serves locally stored avatars under /upload/. Nil when the
	// avatars live in a bucket.
	Uploads http.Handler
	// ImageOrigins extends the img-src policy.
	ImageOrigins []string
}

type staticPage struct {
	path, template, title string
}

var staticPages = []staticPage{
	{"/", "pages/index.html", ""},
	{"/about", "pages/about.html", "Over ons"},
	{"/contact", "pages/contact.html", "Contact"},
}

// NewRouter constructs the chi.Router with Tuneder defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwConfig := MiddlewareConfig{
		Logger:            params.Logger,
		Config:            params.Config,
		SessionManager:    params.SessionManager,
		CSRFManager:       params.CSRFManager,
		Metrics:           params.Metrics,
		ExtraImageOrigins: params.ImageOrigins,
	}
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}
	if params.Uploads != nil {
		r.Handle("/upload/*", staticCacheHandler(params.Uploads))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range SessionStack(mwConfig) {
			r.Use(mw)
		}

		for _, page := range staticPages {
			r.Get(page.path, renderPage(params, page))
		}
		params.AuthHandler.MountRoutes(r)
		params.FavoritesHandler.MountRoutes(r)
		params.QuizHandler.MountRoutes(r)
		params.ArtistsHandler.MountRoutes(r)
	})

	return r
}

func renderPage(params RouterParams, page staticPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:         page.title,
			CSRFToken:     csrfToken,
			Flash:         flash,
			CurrentPath:   r.URL.Path,
			Authenticated: sess.Authenticated(),
		}
		if err := params.Templates.Render(w, page.template, data); err != nil {
			params.Logger.Error("render page", slog.String("template", page.template), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for one hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
