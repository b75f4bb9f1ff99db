// Package quiz keeps the discovery quiz answers in the visitor's session and
// exposes them to the page scripts.
package quiz

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tuneder/tuneder/internal/platform/httpx"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
	"github.com/tuneder/tuneder/internal/view"
)

const defaultPopularity = 50

// UserFinder loads the record of a logged in visitor.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
}

// Handler serves the quiz pages and their JSON views.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	users     UserFinder
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, finder UserFinder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		templates: templates,
		csrf:      csrf,
		users:     finder,
		validator: validator.New(),
	}
}

// MountRoutes registers quiz routes. None of them require a login.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/filter-genre", h.showGenres)
	r.Get("/filter-populariteit", h.showPopularity)
	r.Get("/tuneder", h.showDiscover)
	r.Post("/genre-kiezen", h.handleGenres)
	r.Post("/populariteit-kiezen", h.handlePopularity)
	r.Get("/api/genres", h.apiGenres)
	r.Get("/api/populariteit", h.apiPopularity)
}

// GenreOption is a checkbox on the genre page.
type GenreOption struct {
	Value   string
	Label   string
	Checked bool
}

// GenrePage is the data of the genre page.
type GenrePage struct {
	Options []GenreOption
}

// PopularityPage is the data of the popularity page.
type PopularityPage struct {
	Value int
	Error string
}

// DiscoverPage is the data of the results page.
type DiscoverPage struct {
	Name          string
	Genres        []string
	Popularity    int
	HasPopularity bool
}

type popularityForm struct {
	Value int `validate:"min=0,max=100"`
}

func (h *Handler) showGenres(w http.ResponseWriter, r *http.Request) {
	selected := shared.SessionFromContext(r.Context()).Quiz().Genres
	options := make([]GenreOption, 0, len(Catalogue))
	for _, g := range Catalogue {
		options = append(options, GenreOption{Value: g.Value, Label: g.Label, Checked: slices.Contains(selected, g.Value)})
	}
	h.render(w, r, http.StatusOK, "pages/filter-genre.html", "Genres", GenrePage{Options: options})
}

func (h *Handler) showPopularity(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/filter-populariteit.html", "Populariteit", h.popularityPage(r))
}

func (h *Handler) showDiscover(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/tuneder.html", "Ontdek", h.discoverPage(r))
}

// handleGenres accepts both `genre` and `genre[]` field names. An empty
// submission clears the selection.
func (h *Handler) handleGenres(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	raw := append(slices.Clone(r.PostForm["genre"]), r.PostForm["genre[]"]...)
	shared.SessionFromContext(r.Context()).SetGenres(normalizeGenres(raw))
	h.render(w, r, http.StatusOK, "pages/filter-populariteit.html", "Populariteit", h.popularityPage(r))
}

func (h *Handler) handlePopularity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	value, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("populariteit")))
	if err == nil {
		err = h.validator.Struct(popularityForm{Value: value})
	}
	if err != nil {
		page := h.popularityPage(r)
		page.Error = "Kies een waarde tussen 0 en 100."
		h.render(w, r, http.StatusBadRequest, "pages/filter-populariteit.html", "Populariteit", page)
		return
	}

	shared.SessionFromContext(r.Context()).SetPopularity(value)
	h.render(w, r, http.StatusOK, "pages/tuneder.html", "Ontdek", h.discoverPage(r))
}

type genresResponse struct {
	SelectedGenres []string `json:"selectedGenres"`
}

type popularityResponse struct {
	ValuePopulariteit *int `json:"valuePopulariteit"`
}

func (h *Handler) apiGenres(w http.ResponseWriter, r *http.Request) {
	genres := shared.SessionFromContext(r.Context()).Quiz().Genres
	if genres == nil {
		genres = []string{}
	}
	httpx.JSON(w, http.StatusOK, genresResponse{SelectedGenres: genres})
}

func (h *Handler) apiPopularity(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, popularityResponse{ValuePopulariteit: shared.SessionFromContext(r.Context()).Quiz().Popularity})
}

func (h *Handler) popularityPage(r *http.Request) PopularityPage {
	page := PopularityPage{Value: defaultPopularity}
	if p := shared.SessionFromContext(r.Context()).Quiz().Popularity; p != nil {
		page.Value = *p
	}
	return page
}

// discoverPage greets a logged in visitor by name. A failed lookup only
// drops the greeting.
func (h *Handler) discoverPage(r *http.Request) DiscoverPage {
	sess := shared.SessionFromContext(r.Context())
	state := sess.Quiz()
	page := DiscoverPage{Genres: state.Genres}
	if state.Popularity != nil {
		page.Popularity = *state.Popularity
		page.HasPopularity = true
	}
	if sess.Authenticated() && h.users != nil {
		user, err := h.users.FindByEmail(r.Context(), sess.User())
		if err != nil {
			h.logger.Warn("load user for greeting", slog.Any("error", err))
		} else {
			page.Name = user.DisplayName
		}
	}
	return page
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:         title,
		CSRFToken:     csrfToken,
		Flash:         flash,
		CurrentPath:   r.URL.Path,
		Authenticated: sess.Authenticated(),
		Data:          data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
