// Package sharedtest drives handlers through the real session and CSRF
// middleware backed by miniredis, carrying the session cookie between calls.
package sharedtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tuneder/tuneder/internal/shared"
)

// Client is a single browser talking to handlers under test.
type Client struct {
	t        *testing.T
	Redis    *miniredis.Miniredis
	Sessions *shared.SessionManager
	CSRF     *shared.CSRFManager
	// Mounted means handlers given to Do already run the session and CSRF
	// middleware themselves, as a full router does.
	Mounted bool
	cookie  *http.Cookie
}

// New starts miniredis and the session managers.
func New(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Client{
		t:        t,
		Redis:    mr,
		Sessions: shared.NewSessionManager(rdb, "test_session", "secret", time.Hour, false),
		CSRF:     shared.NewCSRFManager("csrfsecret"),
	}
}

// Do serves req through the session and CSRF middleware and keeps the
// session cookie from the response.
func (c *Client) Do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.serve(h, req, !c.Mounted)
}

func (c *Client) serve(h http.Handler, req *http.Request, wrap bool) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if wrap {
		h = c.Sessions.Middleware(nil)(c.CSRF.Middleware(nil)(h))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name != c.Sessions.CookieName() {
			continue
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			c.cookie = nil
		} else {
			c.cookie = &http.Cookie{Name: ck.Name, Value: ck.Value}
		}
	}
	return rec
}

// Get issues a GET request.
func (c *Client) Get(h http.Handler, target string) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.Do(h, httptest.NewRequest(http.MethodGet, target, nil))
}

// PostForm submits an urlencoded form, adding the session's CSRF token when
// the form has none.
func (c *Client) PostForm(h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if !form.Has(shared.CSRFFormField) {
		form.Set(shared.CSRFFormField, c.CSRFToken())
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(h, req)
}

// CSRFToken returns the token bound to the current session, creating the
// session when needed.
func (c *Client) CSRFToken() string {
	c.t.Helper()
	var token string
	c.serve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		token, err = c.CSRF.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
		if err != nil {
			c.t.Fatalf("ensure csrf token: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}), httptest.NewRequest(http.MethodGet, "/", nil), true)
	return token
}

// Login attaches email to the session as the authenticated user.
func (c *Client) Login(email string) {
	c.t.Helper()
	c.serve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.SessionFromContext(r.Context()).SetUser(email)
		w.WriteHeader(http.StatusNoContent)
	}), httptest.NewRequest(http.MethodGet, "/", nil), true)
}

// Session loads the current session as the next request would see it.
func (c *Client) Session() *shared.Session {
	c.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	sess, err := c.Sessions.Load(context.Background(), req)
	if err != nil {
		c.t.Fatalf("load session: %v", err)
	}
	return sess
}

// Cookie returns the current session cookie, or nil.
func (c *Client) Cookie() *http.Cookie {
	return c.cookie
}

// SessionID returns the verified session id of the current cookie, or "".
func (c *Client) SessionID() string {
	if c.cookie == nil {
		return ""
	}
	id, _ := c.Sessions.SessionID(c.cookie.Value)
	return id
}
