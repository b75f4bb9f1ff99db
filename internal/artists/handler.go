package artists

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/tuneder/tuneder/internal/platform/httpx"
)

// TokenProvider hands out bearer tokens.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Handler exposes the token exchange to the browser scripts.
type Handler struct {
	logger *slog.Logger
	tokens TokenProvider
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, tokens TokenProvider) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, tokens: tokens}
}

// MountRoutes registers the token endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/token", h.handleToken)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.tokens.Token(r.Context())
	if err != nil {
		h.logger.Warn("token exchange", slog.Any("error", err))
		httpx.NoContent(w, http.StatusBadGateway)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{AccessToken: tok.AccessToken})
}
