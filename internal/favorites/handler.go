package favorites

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tuneder/tuneder/internal/auth"
	"github.com/tuneder/tuneder/internal/avatars"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
	"github.com/tuneder/tuneder/internal/view"
)

const savedPath = "/opgeslagen-artiesten"

// HandlerParams groups the Handler dependencies.
type HandlerParams struct {
	Logger    *slog.Logger
	Service   *Service
	Templates *view.Engine
	Sessions  *shared.SessionManager
	CSRF      *shared.CSRFManager
	Avatars   avatars.Store
}

// Handler serves the profile and saved-artists pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	sessions  *shared.SessionManager
	csrf      *shared.CSRFManager
	avatars   avatars.Store
}

// NewHandler constructs a Handler.
func NewHandler(p HandlerParams) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   p.Service,
		templates: p.Templates,
		sessions:  p.Sessions,
		csrf:      p.CSRF,
		avatars:   p.Avatars,
	}
}

// MountRoutes registers the favorites routes behind the login gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/profiel", h.showProfile)
		r.Get(savedPath, h.showSaved)
		r.Post(savedPath, h.handleToggle)
	})
}

// ProfileUser is the part of the user record the pages show.
type ProfileUser struct {
	Name        string
	Email       string
	AvatarURL   string
	MemberSince time.Time
}

// Page is the data of the profile and saved-artists pages.
type Page struct {
	User      ProfileUser
	Favorites []Entry
}

// RenderProfile renders the profile of user with freshly resolved favorites.
func (h *Handler) RenderProfile(w http.ResponseWriter, r *http.Request, user *users.User) {
	h.render(w, r, "pages/profiel.html", "Profiel", h.page(user, h.service.Resolve(r.Context(), user.Favorites)))
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	user, entries, ok := h.load(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/profiel.html", "Profiel", h.page(user, entries))
}

func (h *Handler) showSaved(w http.ResponseWriter, r *http.Request) {
	user, entries, ok := h.load(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/opgeslagen-artiesten.html", "Opgeslagen artiesten", h.page(user, entries))
}

// handleToggle always answers with a redirect to the listing; failures are
// reported through a flash message.
func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	_, err := h.service.Toggle(r.Context(), sess.User(), r.PostFormValue("artistId"))
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidArtistID):
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Deze artiest kan niet worden opgeslagen."})
	case errors.Is(err, shared.ErrNotFound):
		h.sessions.Destroy(sess)
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	default:
		h.logger.Error("toggle favorite", slog.Any("error", err))
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
	}
	http.Redirect(w, r, savedPath, http.StatusSeeOther)
}

// load fetches the authoritative record of the session user. A session whose
// user no longer exists is destroyed.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*users.User, []Entry, bool) {
	sess := shared.SessionFromContext(r.Context())
	email, err := shared.UserFromContext(r.Context())
	var (
		user    *users.User
		entries []Entry
	)
	if err == nil {
		user, entries, err = h.service.Profile(r.Context(), email)
	}
	if err == nil {
		return user, entries, true
	}
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrNotAuthenticated) {
		h.sessions.Destroy(sess)
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return nil, nil, false
	}
	h.logger.Error("load profile", slog.Any("error", err))
	http.Error(w, shared.UserSafeMessage(err), http.StatusServiceUnavailable)
	return nil, nil, false
}

func (h *Handler) page(user *users.User, entries []Entry) Page {
	return Page{
		User: ProfileUser{
			Name:        user.DisplayName,
			Email:       user.Email,
			AvatarURL:   h.avatars.URL(user.AvatarRef),
			MemberSince: user.CreatedAt,
		},
		Favorites: entries,
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data Page) {
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
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
