package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/tuneder/tuneder/internal/artists"
	"github.com/tuneder/tuneder/internal/auth"
	"github.com/tuneder/tuneder/internal/avatars"
	"github.com/tuneder/tuneder/internal/favorites"
	"github.com/tuneder/tuneder/internal/observability"
	"github.com/tuneder/tuneder/internal/quiz"
	"github.com/tuneder/tuneder/internal/shared/sharedtest"
	"github.com/tuneder/tuneder/internal/users/userstest"
	"github.com/tuneder/tuneder/internal/view"
	_ "github.com/tuneder/tuneder/testing"
)

type staticTokens struct{}

func (staticTokens) Token(context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "tok"}, nil
}

type noArtists struct{}

func (noArtists) ResolveArtist(ctx context.Context, id string) (*artists.Artist, error) {
	return &artists.Artist{ID: id, Name: id}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *sharedtest.Client) {
	t.Helper()
	client := sharedtest.New(t)
	client.Mounted = true
	logger := slog.Default()
	repo := userstest.New()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	store, err := avatars.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	cfg := &Config{AppEnv: "test", MaxUploadBytes: 1024}

	favoritesHandler := favorites.NewHandler(favorites.HandlerParams{
		Logger:    logger,
		Service:   favorites.NewService(logger, repo, noArtists{}, metrics),
		Templates: templates,
		Sessions:  client.Sessions,
		CSRF:      client.CSRF,
		Avatars:   store,
	})
	authHandler := auth.NewHandler(auth.HandlerParams{
		Logger:    logger,
		Service:   auth.NewService(repo, bcrypt.MinCost),
		Templates: templates,
		Sessions:  client.Sessions,
		CSRF:      client.CSRF,
		Avatars:   store,
		Profiles:  favoritesHandler,
		Metrics:   metrics,
	})

	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   client.Sessions,
		CSRFManager:      client.CSRF,
		AuthHandler:      authHandler,
		FavoritesHandler: favoritesHandler,
		QuizHandler:      quiz.NewHandler(logger, templates, client.CSRF, repo),
		ArtistsHandler:   artists.NewHandler(logger, staticTokens{}),
		Metrics:          metrics,
		Uploads:          store.Handler(),
	})
	return router, client
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzSkipsSessions(t *testing.T) {
	router, client := newTestRouter(t)
	client.Redis.Close()

	res := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
	assert.Empty(t, res.Result().Cookies())
}

func TestStaticPagesRender(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/", "/about", "/contact", "/inlog", "/aanmelden", "/fout-inlog", "/filter-genre", "/filter-populariteit", "/tuneder"} {
		res := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, res.Code, path)
		assert.Contains(t, res.Header().Get("Content-Type"), "text/html", path)
	}
}

func TestSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	res := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.Contains(t, res.Header().Get("Content-Security-Policy"), "https://i.scdn.co")
}

func TestFavoritesAreGated(t *testing.T) {
	router, _ := newTestRouter(t)

	res := serve(router, httptest.NewRequest(http.MethodGet, "/opgeslagen-artiesten", nil))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/inlog", res.Header().Get("Location"))
}

func TestAnonymousFavoriteToggle(t *testing.T) {
	router, client := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/opgeslagen-artiesten", strings.NewReader("artistId=abc"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := serve(router, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.NotContains(t, res.Body.String(), "abc")

	res = client.PostForm(router, "/opgeslagen-artiesten", url.Values{"artistId": {"abc"}})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/inlog", res.Header().Get("Location"))
}

func TestPostWithoutTokenIsForbidden(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/genre-kiezen", strings.NewReader("genre=pop"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res := serve(router, req)

	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	router, client := newTestRouter(t)

	form := url.Values{"genre": {strings.Repeat("x", 2<<20)}}
	res := client.PostForm(router, "/genre-kiezen", form)

	assert.Equal(t, http.StatusRequestEntityTooLarge, res.Code)
}

func TestAPIAndTokenRoutes(t *testing.T) {
	router, client := newTestRouter(t)

	res := client.Get(router, "/api/genres")
	assert.JSONEq(t, `{"selectedGenres":[]}`, res.Body.String())

	res = client.Get(router, "/token")
	assert.JSONEq(t, `{"access_token":"tok"}`, res.Body.String())
}

func TestStaticAssetsAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	res := serve(router, httptest.NewRequest(http.MethodGet, "/static/img/profiel-placeholder.svg", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "public, max-age=3600", res.Header().Get("Cache-Control"))

	serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	res = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "tuneder_http_requests_total")
}

func TestLoginFlowThroughRouter(t *testing.T) {
	router, client := newTestRouter(t)

	res := client.PostForm(router, "/add-account", url.Values{
		"name":     {"Al"},
		"email":    {"a@b.com"},
		"password": {"secret123"},
	})
	require.Equal(t, http.StatusSeeOther, res.Code)

	res = client.Get(router, "/profiel")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "a@b.com")

	res = client.Get(router, "/uitloggen")
	assert.Equal(t, http.StatusSeeOther, res.Code)

	res = client.Get(router, "/profiel")
	assert.Equal(t, http.StatusSeeOther, res.Code)
}
