// Package speedrun is a read-only client for the speedrun.com REST API.
package speedrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"speedrun-bot/metrics"
	"speedrun-bot/utils"
)

const (
	DefaultBaseURL = "https://www.speedrun.com/api/v1"

	// speedrun.com allows 100 requests per minute; stay a little under it.
	DefaultRequestsPerMinute = 90

	maxThrottleRetries = 3
	defaultRetryAfter  = 10 * time.Second
	userAgent          = "speedrun-bot (verified run notifications)"
)

// Client is a rate-limited speedrun.com API client. It caches leaderboard
// snapshots until the next verified-run listing begins.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu           sync.Mutex
	leaderboards map[leaderboardKey][]Placement
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRequestsPerMinute sets the client side rate limit. Zero or less
// disables limiting.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 5)
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		httpClient:   utils.GlobalHTTPClient,
		leaderboards: make(map[leaderboardKey][]Placement),
	}
	WithRequestsPerMinute(DefaultRequestsPerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs a rate-limited GET and decodes the JSON body into result.
// endpoint is a low-cardinality label used for metrics and logs.
func (c *Client) doRequest(ctx context.Context, endpoint, url string, result any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.UpstreamRequest(endpoint, "network_error")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransientError{Err: err}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			metrics.UpstreamRequest(endpoint, "throttled")
			if attempt >= maxThrottleRetries {
				return &TransientError{StatusCode: resp.StatusCode, Err: errors.New("rate limited")}
			}
			log.Warn().Msgf("[Speedrun] 429 from %s, waiting %s", endpoint, wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = decodeResponse(resp, result)
		resp.Body.Close()
		switch {
		case err == nil:
			metrics.UpstreamRequest(endpoint, "ok")
		case IsTransient(err):
			metrics.UpstreamRequest(endpoint, "server_error")
		case errors.Is(err, ErrNotFound):
			metrics.UpstreamRequest(endpoint, "not_found")
		default:
			metrics.UpstreamRequest(endpoint, "error")
		}
		return err
	}
}

func decodeResponse(resp *http.Response, result any) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, ErrNotFound)
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("speedrun: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &ValidationError{Schema: resp.Request.URL.Path, Err: err}
	}
	return nil
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// UserName looks up a user's international display name.
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	var envelope userEnvelope
	if err := c.doRequest(ctx, "users", c.baseURL+"/users/"+userID, &envelope); err != nil {
		return "", err
	}
	if err := checkStruct("user", &envelope.Data); err != nil {
		return "", err
	}
	return envelope.Data.Names.International, nil
}

// ResolveUserName is UserName with failures collapsed into "unknown".
func (c *Client) ResolveUserName(ctx context.Context, userID string) string {
	name, err := c.UserName(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msgf("[Speedrun] Failed to get user %s", userID)
		return "unknown"
	}
	if name == "" {
		return "unknown"
	}
	return name
}

// GetGame fetches game metadata.
func (c *Client) GetGame(ctx context.Context, gameID string) (*Game, error) {
	var envelope gameEnvelope
	if err := c.doRequest(ctx, "games", c.baseURL+"/games/"+gameID, &envelope); err != nil {
		return nil, err
	}
	if err := checkStruct("game", &envelope.Data); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// GetGameIconURL returns the URI of the game's icon asset.
func (c *Client) GetGameIconURL(ctx context.Context, gameID string) (string, error) {
	game, err := c.GetGame(ctx, gameID)
	if err != nil {
		return "", err
	}
	if game.Assets.Icon == nil || game.Assets.Icon.URI == "" {
		return "", fmt.Errorf("game %s has no icon: %w", gameID, ErrNotFound)
	}
	return game.Assets.Icon.URI, nil
}

// GetGameVariables returns the game's variable definitions keyed by id. It is
// best effort: any failure yields an empty map.
func (c *Client) GetGameVariables(ctx context.Context, gameID string) map[string]Variable {
	variables := make(map[string]Variable)

	var envelope variablesEnvelope
	if err := c.doRequest(ctx, "game_variables", c.baseURL+"/games/"+gameID+"/variables", &envelope); err != nil {
		log.Warn().Err(err).Msgf("[Speedrun] Failed to get variables for game %s", gameID)
		return variables
	}
	for _, variable := range envelope.Data {
		if err := checkStruct("variable", &variable); err != nil {
			log.Warn().Err(err).Msgf("[Speedrun] Skipping malformed variable of game %s", gameID)
			continue
		}
		variables[variable.ID] = variable
	}
	return variables
}
