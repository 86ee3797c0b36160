package speedrun

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"speedrun-bot/metrics"
)

type leaderboardKey struct {
	game          string
	category      string
	subcategories string
	asOf          string
}

// NormalizeSubcategories renders a subcategory selection as
// "var-<id>=<value>" pairs joined by "&" and sorted by variable id, so that
// equal selections always produce the same string.
func NormalizeSubcategories(subcategories map[string]string) string {
	if len(subcategories) == 0 {
		return ""
	}
	ids := make([]string, 0, len(subcategories))
	for id := range subcategories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pairs := make([]string, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, "var-"+url.QueryEscape(id)+"="+url.QueryEscape(subcategories[id]))
	}
	return strings.Join(pairs, "&")
}

// GetLeaderboard returns the placements of a category leaderboard scoped to
// the given subcategory values, as it stood at asOf. A zero asOf means the
// current leaderboard. Results are cached until ListVerifiedRuns is next
// called.
func (c *Client) GetLeaderboard(ctx context.Context, gameID, categoryID string, subcategories map[string]string, asOf time.Time) ([]Placement, error) {
	normalized := NormalizeSubcategories(subcategories)
	key := leaderboardKey{game: gameID, category: categoryID, subcategories: normalized}
	if !asOf.IsZero() {
		key.asOf = asOf.UTC().Format(time.RFC3339)
	}

	c.mu.Lock()
	cached, ok := c.leaderboards[key]
	c.mu.Unlock()
	if ok {
		metrics.LeaderboardCacheHit()
		return cached, nil
	}
	metrics.LeaderboardCacheMiss()

	params := make([]string, 0, 2)
	if normalized != "" {
		params = append(params, normalized)
	}
	if key.asOf != "" {
		params = append(params, "date="+url.QueryEscape(key.asOf))
	}
	endpoint := c.baseURL + "/leaderboards/" + url.PathEscape(gameID) + "/category/" + url.PathEscape(categoryID)
	if len(params) > 0 {
		endpoint += "?" + strings.Join(params, "&")
	}

	var envelope leaderboardEnvelope
	if err := c.doRequest(ctx, "leaderboards", endpoint, &envelope); err != nil {
		return nil, err
	}

	placements := make([]Placement, 0, len(envelope.Data.Runs))
	for _, entry := range envelope.Data.Runs {
		if err := checkStruct("leaderboard run", &entry); err != nil {
			return nil, err
		}
		placements = append(placements, Placement{Place: entry.Place, RunID: entry.Run.ID})
	}

	c.mu.Lock()
	c.leaderboards[key] = placements
	c.mu.Unlock()

	return placements, nil
}

// ClearLeaderboardCache drops every cached leaderboard snapshot.
func (c *Client) ClearLeaderboardCache() {
	c.mu.Lock()
	c.leaderboards = make(map[leaderboardKey][]Placement)
	c.mu.Unlock()
}
