package speedrun

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	runsPageSize = 200
	runsEmbed    = "game,category.variables,players,level"
)

func (c *Client) runsURL(gameID, direction string, max int) string {
	query := url.Values{}
	query.Set("game", gameID)
	query.Set("status", StatusVerified)
	query.Set("orderby", "verify-date")
	query.Set("direction", direction)
	query.Set("max", fmt.Sprint(max))
	query.Set("embed", runsEmbed)
	return c.baseURL + "/runs?" + query.Encode()
}

// ListVerifiedRuns yields the verified runs of a game in ascending
// verification order.
//
// With a nil since every verified run is listed oldest first, page by page.
// Otherwise pages are fetched newest first until a run verified at or before
// since is seen; the collected runs are then yielded oldest first, so every
// yielded run was verified strictly after since.
//
// Calling ListVerifiedRuns clears the leaderboard snapshot cache, because new
// runs change the placements of cached leaderboards.
func (c *Client) ListVerifiedRuns(ctx context.Context, gameID string, since *time.Time) iter.Seq2[*Run, error] {
	c.ClearLeaderboardCache()

	if since == nil {
		return c.listAscending(ctx, gameID)
	}
	watermark := since.UTC()
	return func(yield func(*Run, error) bool) {
		runs, err := c.collectSince(ctx, gameID, watermark)
		if err != nil {
			yield(nil, err)
			return
		}
		for i := len(runs) - 1; i >= 0; i-- {
			if !yield(runs[i], nil) {
				return
			}
		}
	}
}

func (c *Client) listAscending(ctx context.Context, gameID string) iter.Seq2[*Run, error] {
	return func(yield func(*Run, error) bool) {
		next := c.runsURL(gameID, "asc", runsPageSize)
		for next != "" {
			page, err := c.fetchRunsPage(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			for i := range page.Data {
				if !yield(&page.Data[i], nil) {
					return
				}
			}
			next, _ = page.Pagination.next()
		}
	}
}

func (c *Client) collectSince(ctx context.Context, gameID string, since time.Time) ([]*Run, error) {
	var collected []*Run
	next := c.runsURL(gameID, "desc", runsPageSize)
	for next != "" {
		page, err := c.fetchRawRunsPage(ctx, next)
		if err != nil {
			return nil, err
		}
		// Runs at or below the watermark, or without a readable verify
		// date, end the listing unvalidated.
		for i := range page.Data {
			run := &page.Data[i]
			if !run.VerifyDate().After(since) {
				return collected, nil
			}
			if err := validateRun(run); err != nil {
				return nil, err
			}
			collected = append(collected, run)
		}
		next, _ = page.Pagination.next()
	}
	return collected, nil
}

func (c *Client) fetchRunsPage(ctx context.Context, pageURL string) (*runsPage, error) {
	page, err := c.fetchRawRunsPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	for i := range page.Data {
		if err := validateRun(&page.Data[i]); err != nil {
			return nil, err
		}
	}
	return page, nil
}

func (c *Client) fetchRawRunsPage(ctx context.Context, pageURL string) (*runsPage, error) {
	var page runsPage
	if err := c.doRequest(ctx, "runs", pageURL, &page); err != nil {
		return nil, err
	}
	log.Debug().Msgf("[Speedrun] Fetched %d runs (offset %d)", len(page.Data), page.Pagination.Offset)
	return &page, nil
}

func validateRun(run *Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("run %q: %w", run.ID, err)
	}
	return nil
}

// GetLatestVerifiedRun returns the most recently verified run of a game.
func (c *Client) GetLatestVerifiedRun(ctx context.Context, gameID string) (*Run, error) {
	page, err := c.fetchRunsPage(ctx, c.runsURL(gameID, "desc", 1))
	if err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, fmt.Errorf("latest verified run of %s: %w", gameID, ErrNotFound)
	}
	return &page.Data[0], nil
}
