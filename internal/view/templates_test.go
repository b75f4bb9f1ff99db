package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStatusWritesPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	res := httptest.NewRecorder()
	err = engine.RenderStatus(res, http.StatusUnauthorized, "pages/fout-inlog.html", TemplateData{Title: "Inloggen mislukt"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "text/html; charset=utf-8", res.Header().Get("Content-Type"))
	assert.Contains(t, res.Body.String(), "Inloggen mislukt")
}

func TestRenderUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	res := httptest.NewRecorder()
	err = engine.Render(res, "pages/missing.html", TemplateData{})
	assert.Error(t, err)
	assert.Empty(t, res.Body.String())
	assert.Empty(t, res.Header().Get("Content-Type"))
}

func TestStaticPagesRender(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	for _, page := range []string{
		"pages/index.html",
		"pages/about.html",
		"pages/contact.html",
		"pages/tuneder.html",
		"pages/filter-populariteit.html",
		"pages/filter-genre.html",
		"pages/inlog.html",
		"pages/aanmelden.html",
		"pages/fout-inlog.html",
	} {
		t.Run(page, func(t *testing.T) {
			res := httptest.NewRecorder()
			require.NoError(t, engine.Render(res, page, TemplateData{Title: "Tuneder", CSRFToken: "tok"}))
			assert.Contains(t, res.Body.String(), "<html")
		})
	}
}
