package app

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/tuneder/tuneder/internal/observability"
	"github.com/tuneder/tuneder/internal/shared"
)

// formOverhead is the room left for the text fields of a multipart upload.
const formOverhead = 1 << 20

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
	// ExtraImageOrigins are added to img-src, e.g. the public URL of the
	// avatar bucket.
	ExtraImageOrigins []string
}

// ContentSecurityPolicy allows the Spotify API, artwork and embeds and the
// Google font stylesheet used by the layout.
func ContentSecurityPolicy(extraImageOrigins ...string) string {
	img := append([]string{"'self'", "data:", "https://i.scdn.co"}, extraImageOrigins...)
	directives := []string{
		"default-src 'self'",
		"img-src " + strings.Join(img, " "),
		"connect-src 'self' https://api.spotify.com",
		"style-src 'self' https://fonts.googleapis.com",
		"font-src 'self' https://fonts.gstatic.com",
		"frame-src https://open.spotify.com",
		"object-src 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	return strings.Join(directives, "; ")
}

// MiddlewareStack installs the Tuneder middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: ContentSecurityPolicy(cfg.ExtraImageOrigins...),
		SSLRedirect:           cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	maxBody := int64(5<<20) + formOverhead
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.MaxUploadBytes > 0 {
			maxBody = cfg.Config.MaxUploadBytes + formOverhead
		}
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		middleware.RequestSize(maxBody),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// SessionStack loads the session and enforces CSRF tokens. It wraps the page
// and API routes only; health, metrics and assets stay session free.
func SessionStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		cfg.SessionManager.Middleware(cfg.Logger),
		cfg.CSRFManager.Middleware(cfg.Logger),
	}
}
