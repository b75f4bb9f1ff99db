// Package artists resolves Spotify artist ids to display metadata using a
// client-credentials bearer token.
package artists

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tuneder/tuneder/internal/shared"
)

const maxResponseBytes = 1 << 20

// Image is one artwork rendition.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type followers struct {
	Total int `json:"total"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// Artist is the subset of the Spotify artist object the pages render.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	Images       []Image      `json:"images"`
	Popularity   int          `json:"popularity"`
	Followers    followers    `json:"followers"`
	ExternalURLs externalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// ImageURL returns the largest image, or "" when the artist has none.
func (a *Artist) ImageURL() string {
	if a == nil || len(a.Images) == 0 {
		return ""
	}
	return a.Images[0].URL
}

// SpotifyURL returns the public profile link.
func (a *Artist) SpotifyURL() string {
	if a == nil {
		return ""
	}
	return a.ExternalURLs.Spotify
}

// Recorder receives lookup outcomes for metrics.
type Recorder interface {
	RecordArtistLookup(outcome string, elapsed time.Duration)
	RecordTokenFetch(outcome string)
}

// Config configures the Client.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	// RateLimit caps outbound lookups per second. Zero disables the limit.
	RateLimit float64
	Timeout   time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client talks to the Spotify Web API.
type Client struct {
	logger   *slog.Logger
	tokens   oauth2.TokenSource
	http     *http.Client
	apiURL   string
	limiter  *rate.Limiter
	group    singleflight.Group
	timeout  time.Duration
	recorder Recorder
}

// NewClient builds a Client. The token source returned by clientcredentials
// reuses a token until shortly before it expires, so lookups and /token
// share one cached bearer token.
func NewClient(logger *slog.Logger, cfg Config, recorder Recorder) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		logger:   logger,
		tokens:   cc.TokenSource(tokenCtx),
		http:     httpClient,
		apiURL:   strings.TrimRight(cfg.APIURL, "/"),
		limiter:  limiter,
		timeout:  timeout,
		recorder: recorder,
	}
}

// Token returns the current bearer token, fetching a new one when the cached
// token is missing or about to expire.
func (c *Client) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("artists: token: %w: %w", shared.ErrTokenFetch, err)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		c.recordToken("error")
		return nil, fmt.Errorf("artists: token: %w: %w", shared.ErrTokenFetch, err)
	}
	if tok.AccessToken == "" {
		c.recordToken("error")
		return nil, fmt.Errorf("artists: token: %w: empty access token", shared.ErrTokenFetch)
	}
	c.recordToken("ok")
	return tok, nil
}

// ResolveArtist fetches metadata for one artist id. Concurrent calls for the
// same id share one request, which runs detached from any single caller and
// is bounded by the client timeout; each caller still returns as soon as its
// own ctx is done. Every failure wraps shared.ErrLookup.
func (c *Client) ResolveArtist(ctx context.Context, artistID string) (*Artist, error) {
	artistID = strings.TrimSpace(artistID)
	if artistID == "" {
		return nil, fmt.Errorf("artists: %w: empty id", shared.ErrLookup)
	}

	start := time.Now()
	ch := c.group.DoChan(artistID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetchArtist(fetchCtx, artistID)
	})

	var (
		v   any
		err error
	)
	select {
	case <-ctx.Done():
		err = fmt.Errorf("artists: %s: %w: %w", artistID, shared.ErrLookup, ctx.Err())
	case res := <-ch:
		v, err = res.Val, res.Err
	}
	if err != nil {
		c.recordLookup("error", start)
		c.logger.Debug("artist lookup failed", slog.String("artist_id", artistID), slog.Any("error", err))
		return nil, err
	}
	c.recordLookup("ok", start)

	artist := *v.(*Artist)
	return &artist, nil
}

func (c *Client) fetchArtist(ctx context.Context, artistID string) (*Artist, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("artists: %s: %w: %w", artistID, shared.ErrLookup, err)
	}

	tok, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("artists: %s: %w: %w", artistID, shared.ErrLookup, err)
	}

	endpoint := c.apiURL + "/artists/" + url.PathEscape(artistID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("artists: %s: %w: %w", artistID, shared.ErrLookup, err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artists: %s: %w: %w", artistID, shared.ErrLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("artists: %s: %w: status %d", artistID, shared.ErrLookup, resp.StatusCode)
	}

	var artist Artist
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&artist); err != nil {
		return nil, fmt.Errorf("artists: %s: %w: decode: %w", artistID, shared.ErrLookup, err)
	}
	if artist.ID == "" {
		return nil, fmt.Errorf("artists: %s: %w: %w", artistID, shared.ErrLookup, errors.New("response without id"))
	}
	return &artist, nil
}

func (c *Client) recordLookup(outcome string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordArtistLookup(outcome, time.Since(start))
	}
}

func (c *Client) recordToken(outcome string) {
	if c.recorder != nil {
		c.recorder.RecordTokenFetch(outcome)
	}
}
