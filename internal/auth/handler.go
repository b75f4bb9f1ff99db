package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/tuneder/tuneder/internal/avatars"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
	"github.com/tuneder/tuneder/internal/view"
)

// ProfileRenderer renders the profile page of a user that just logged in.
type ProfileRenderer interface {
	RenderProfile(w http.ResponseWriter, r *http.Request, user *users.User)
}

// Recorder counts login outcomes.
type Recorder interface {
	RecordLogin(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordLogin(string) {}

// HandlerParams groups the Handler dependencies.
type HandlerParams struct {
	Logger    *slog.Logger
	Service   *Service
	Templates *view.Engine
	Sessions  *shared.SessionManager
	CSRF      *shared.CSRFManager
	Avatars   avatars.Store
	Profiles  ProfileRenderer
	Metrics   Recorder
	// AttemptsPerMinute limits login and registration posts per client IP.
	AttemptsPerMinute int
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	avatars        avatars.Store
	profiles       ProfileRenderer
	metrics        Recorder
	attempts       int
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(p HandlerParams) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics Recorder = noopRecorder{}
	if p.Metrics != nil {
		metrics = p.Metrics
	}
	attempts := p.AttemptsPerMinute
	if attempts <= 0 {
		attempts = 10
	}
	return &Handler{
		logger:         logger,
		service:        p.Service,
		templates:      p.Templates,
		sessionManager: p.Sessions,
		csrfManager:    p.CSRF,
		avatars:        p.Avatars,
		profiles:       p.Profiles,
		metrics:        metrics,
		attempts:       attempts,
		validator:      newValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inlog", h.showLogin)
	r.Get("/aanmelden", h.showRegister)
	r.Get("/fout-inlog", h.showLoginFailed)
	r.Get("/uitloggen", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.attempts, time.Minute))
		r.Post("/add-account", h.handleRegister)
		r.Post("/inlog-account", h.handleLogin)
	})
}

type loginForm struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,bcryptlen"`
}

// LoginPage is the data of the login page.
type LoginPage struct {
	Email   string
	Message string
}

type registerForm struct {
	Name     string `validate:"required,max=80"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,bcryptlen"`
}

// RegisterPage is the data of the registration page.
type RegisterPage struct {
	Form    registerForm
	Errors  map[string]string
	Message string
}

var fieldMessages = map[string]string{
	"Name":     "Vul je naam in (maximaal 80 tekens).",
	"Email":    "Vul een geldig e-mailadres in.",
	"Password": "Kies een wachtwoord van 8 tot 72 tekens.",
}

// newValidator registers bcryptlen, which bounds a password by bytes rather
// than characters.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	return v
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
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

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/inlog.html", "Inloggen", LoginPage{})
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/aanmelden.html", "Aanmelden", RegisterPage{})
}

func (h *Handler) showLoginFailed(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/fout-inlog.html", "Inloggen mislukt", nil)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.metrics.RecordLogin("invalid")
		h.render(w, r, http.StatusUnauthorized, "pages/fout-inlog.html", "Inloggen mislukt", nil)
		return
	}

	user, err := h.service.Login(r.Context(), form.Email, form.Password)
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		h.metrics.RecordLogin("invalid")
		h.render(w, r, http.StatusUnauthorized, "pages/fout-inlog.html", "Inloggen mislukt", nil)
		return
	case err != nil:
		h.metrics.RecordLogin("error")
		h.logger.Error("login", slog.Any("error", err))
		h.render(w, r, http.StatusServiceUnavailable, "pages/inlog.html", "Inloggen",
			LoginPage{Email: form.Email, Message: shared.UserSafeMessage(err)})
		return
	}

	h.metrics.RecordLogin("ok")
	h.establish(r, user)
	h.profiles.RenderProfile(w, r, user)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := registerForm{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	page := RegisterPage{Form: registerForm{Name: form.Name, Email: form.Email}, Errors: map[string]string{}}
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				page.Errors[fieldErr.Field()] = fieldMessages[fieldErr.Field()]
			}
		}
		h.render(w, r, http.StatusBadRequest, "pages/aanmelden.html", "Aanmelden", page)
		return
	}

	avatarRef, err := h.storeAvatar(r)
	if err != nil {
		if errors.Is(err, avatars.ErrUnsupportedType) {
			page.Errors["Avatar"] = "Alleen afbeeldingen (png, jpg, gif of webp) zijn toegestaan."
			h.render(w, r, http.StatusBadRequest, "pages/aanmelden.html", "Aanmelden", page)
			return
		}
		h.logger.Error("store avatar", slog.Any("error", err))
		page.Message = shared.UserSafeMessage(err)
		h.render(w, r, http.StatusInternalServerError, "pages/aanmelden.html", "Aanmelden", page)
		return
	}

	user, err := h.service.Register(r.Context(), Registration{
		Email:       form.Email,
		Password:    form.Password,
		DisplayName: form.Name,
		AvatarRef:   avatarRef,
	})
	if err != nil {
		h.discardAvatar(r, avatarRef)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, shared.ErrDuplicateEmail):
			status = http.StatusConflict
			page.Message = shared.UserSafeMessage(err)
		case errors.Is(err, ErrIncomplete):
			status = http.StatusBadRequest
			page.Message = "Vul je naam, e-mailadres en wachtwoord in."
		case errors.Is(err, ErrPasswordTooLong):
			status = http.StatusBadRequest
			page.Errors["Password"] = fieldMessages["Password"]
		default:
			h.logger.Error("register", slog.Any("error", err))
			page.Message = shared.UserSafeMessage(err)
		}
		h.render(w, r, status, "pages/aanmelden.html", "Aanmelden", page)
		return
	}

	h.establish(r, user)
	http.Redirect(w, r, "/profiel", http.StatusSeeOther)
}

const maxMultipartMemory = 32 << 20

func (h *Handler) storeAvatar(r *http.Request) (string, error) {
	file, _, err := r.FormFile("profielFoto")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", err
	}
	defer file.Close()
	return avatars.Accept(r.Context(), h.avatars, file)
}

func (h *Handler) discardAvatar(r *http.Request, ref string) {
	if ref == "" {
		return
	}
	if err := h.avatars.Delete(r.Context(), ref); err != nil {
		h.logger.Warn("discard avatar", slog.String("ref", ref), slog.Any("error", err))
	}
}

// establish attaches the user to a fresh session id and a fresh CSRF token.
func (h *Handler) establish(r *http.Request, user *users.User) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		return
	}
	h.sessionManager.Renew(sess)
	h.csrfManager.Rotate(sess)
	sess.SetUser(user.Email)
}

// handleLogout marks the session destroyed and redirects. Removing the
// stored session happens on commit; a failure there is only logged.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.Destroy(shared.SessionFromContext(r.Context()))
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}
