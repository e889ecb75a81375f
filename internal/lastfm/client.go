package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shkh/lastfm-go/lastfm"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/llehouerou/scrobsync/internal/logging"
)

const (
	baseURL = "https://ws.audioscrobbler.com/2.0/"
	authURL = "https://www.last.fm/api/auth/"

	// MaxBatchSize is the largest number of scrobbles per track.scrobble call.
	MaxBatchSize = 50
	// MaxRecentLimit is the largest page user.getRecentTracks returns.
	MaxRecentLimit = 200

	// Last.fm asks clients to stay below 5 requests per second.
	requestsPerSecond = 5
	requestTimeout    = 30 * time.Second
)

// Client talks to the Last.fm API. Account linking goes through lastfm-go;
// scrobbling and history use the JSON API directly so aggregate counts and
// timestamps come back intact.
type Client struct {
	api       *lastfm.Api
	apiKey    string
	apiSecret string
	baseURL   string

	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     zerolog.Logger

	mu         sync.RWMutex
	sessionKey string
	username   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBaseURL points API calls at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New creates a new Last.fm client with the given API credentials.
func New(apiKey, apiSecret string, opts ...Option) *Client {
	c := &Client{
		api:       lastfm.New(apiKey, apiSecret),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: requestTimeout},
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		log:       logging.Component("lastfm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "lastfm",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// Only transport and server-side failures count against the service.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.serverSide()
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return c
}

// SetSession sets the authenticated user and session key.
func (c *Client) SetSession(username, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
	c.sessionKey = key
	c.api.SetSession(key)
}

// SessionKey returns the current session key.
func (c *Client) SessionKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionKey
}

// Username returns the linked account name.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// IsAuthenticated returns true if a session key is set.
func (c *Client) IsAuthenticated() bool {
	return c.SessionKey() != ""
}

// GetToken requests an authentication token from Last.fm.
func (c *Client) GetToken() (string, error) {
	result, err := c.api.GetToken()
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return result, nil
}

// GetAuthURL returns the URL for user authorization (desktop auth flow).
// User authorizes on Last.fm, then returns to the app and confirms.
func (c *Client) GetAuthURL(token string) string {
	return fmt.Sprintf("%s?api_key=%s&token=%s", authURL, c.apiKey, url.QueryEscape(token))
}

// GetCallbackAuthURL returns the URL for the web auth flow: Last.fm redirects
// to callback with the token once the user approves.
func (c *Client) GetCallbackAuthURL(callback string) string {
	return fmt.Sprintf("%s?api_key=%s&cb=%s", authURL, c.apiKey, url.QueryEscape(callback))
}

// GetSession exchanges an authorized token for a session key and stores it
// on the client.
func (c *Client) GetSession(token string) (username, sessionKey string, err error) {
	err = c.api.LoginWithToken(token)
	if err != nil {
		return "", "", fmt.Errorf("get session: %w", err)
	}

	sessionKey = c.api.GetSessionKey()

	// Get the username by calling user.getInfo
	userInfo, err := c.api.User.GetInfo(nil)
	if err != nil {
		// Session is valid but couldn't get username; recent tracks stay
		// unavailable until the next link.
		c.SetSession("", sessionKey)
		return "", sessionKey, nil //nolint:nilerr // username is optional
	}

	c.SetSession(userInfo.Name, sessionKey)
	return userInfo.Name, sessionKey, nil
}
