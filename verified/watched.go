package verified

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"speedrun-bot/metrics"
	"speedrun-bot/model"
	"speedrun-bot/speedrun"
)

const DefaultPollInterval = 60 * time.Second

// RunSource is the leaderboard client as seen by a watched leaderboard.
type RunSource interface {
	LeaderboardSource
	ListVerifiedRuns(ctx context.Context, gameID string, since *time.Time) iter.Seq2[*speedrun.Run, error]
	GetLatestVerifiedRun(ctx context.Context, gameID string) (*speedrun.Run, error)
	GetGameVariables(ctx context.Context, gameID string) map[string]speedrun.Variable
	GetGameIconURL(ctx context.Context, gameID string) (string, error)
}

// Publisher delivers notifications to a chat channel.
type Publisher interface {
	// ResolveChannel fails when channelID cannot receive messages.
	ResolveChannel(ctx context.Context, channelID string) error
	Publish(ctx context.Context, channelID string, summary Summary) error
	Announce(ctx context.Context, channelID, text string) error
}

// LeaderboardConfig binds one game to one channel.
type LeaderboardConfig struct {
	GameName     string
	GameID       string
	ChannelID    string
	PollInterval time.Duration
	// Start is the earliest verification time to notify about. Nil means
	// the time the leaderboard is created.
	Start    *time.Time
	Variants []string
	Color    int
}

// Deps are the collaborators shared by every watched leaderboard.
type Deps struct {
	Source    RunSource
	Publisher Publisher
	Posted    *PostedRuns
	// Watermarks is optional.
	Watermarks    model.WatermarkStore
	Now           func() time.Time
	RecordOptions []RecordOption
}

// WatchedLeaderboard polls one game for newly verified runs and publishes
// each of them once, oldest first.
type WatchedLeaderboard struct {
	cfg       LeaderboardConfig
	deps      Deps
	variables map[string]speedrun.Variable
	iconURL   string

	mu         sync.RWMutex
	since      time.Time
	lastPolled time.Time
}

// NewWatchedLeaderboard resolves the destination channel, fetches the game's
// variable definitions and icon, settles the starting watermark and
// announces itself in the channel.
func NewWatchedLeaderboard(ctx context.Context, cfg LeaderboardConfig, deps Deps) (*WatchedLeaderboard, error) {
	if cfg.GameName == "" || cfg.GameID == "" {
		return nil, errors.New("watched leaderboard needs a game name and id")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	if err := deps.Publisher.ResolveChannel(ctx, cfg.ChannelID); err != nil {
		return nil, fmt.Errorf("resolve channel %s for %s: %w", cfg.ChannelID, cfg.GameName, err)
	}

	w := &WatchedLeaderboard{
		cfg:       cfg,
		deps:      deps,
		variables: deps.Source.GetGameVariables(ctx, cfg.GameID),
	}

	iconURL, err := deps.Source.GetGameIconURL(ctx, cfg.GameID)
	if err != nil {
		log.Warn().Err(err).Msgf("[VerifiedRuns] No icon for %s", cfg.GameName)
	}
	w.iconURL = iconURL

	w.since = w.startingWatermark(ctx)
	log.Info().Msgf("[VerifiedRuns] Watching %s (%s) in channel %s since %s",
		cfg.GameName, cfg.GameID, cfg.ChannelID, w.since.Format(time.RFC3339))

	text := fmt.Sprintf("Now watching %s for newly verified runs.", cfg.GameName)
	if err := deps.Publisher.Announce(ctx, cfg.ChannelID, text); err != nil {
		log.Warn().Err(err).Msgf("[VerifiedRuns] Failed to announce %s", cfg.GameName)
	}
	return w, nil
}

// startingWatermark is the later of the configured start and the persisted
// watermark, or now when there is neither.
func (w *WatchedLeaderboard) startingWatermark(ctx context.Context) time.Time {
	var start time.Time
	found := false
	if w.cfg.Start != nil {
		start = w.cfg.Start.UTC()
		found = true
	}

	if w.deps.Watermarks != nil {
		saved, ok, err := w.deps.Watermarks.LoadWatermark(ctx, w.cfg.GameName)
		switch {
		case err != nil:
			log.Warn().Err(err).Msgf("[VerifiedRuns] Failed to load watermark of %s", w.cfg.GameName)
		case ok && (!found || saved.After(start)):
			start = saved.UTC()
			found = true
		}
	}

	if !found {
		return w.deps.Now().UTC()
	}
	return start
}

func (w *WatchedLeaderboard) GameName() string {
	return w.cfg.GameName
}

func (w *WatchedLeaderboard) GameID() string {
	return w.cfg.GameID
}

func (w *WatchedLeaderboard) ChannelID() string {
	return w.cfg.ChannelID
}

func (w *WatchedLeaderboard) PollInterval() time.Duration {
	return w.cfg.PollInterval
}

// Since is the watermark: runs verified at or before it are done.
func (w *WatchedLeaderboard) Since() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.since
}

// LastPolled is when the last poll cycle finished, zero before the first.
func (w *WatchedLeaderboard) LastPolled() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastPolled
}

func (w *WatchedLeaderboard) recordOptions() []RecordOption {
	opts := append([]RecordOption(nil), w.deps.RecordOptions...)
	if len(w.cfg.Variants) > 0 {
		opts = append(opts, WithVariants(NamedVariables(w.cfg.Variants), w.variables))
	}
	return opts
}

func (w *WatchedLeaderboard) summarize(ctx context.Context, run *speedrun.Run) (Summary, error) {
	record, err := NewRecord(run, w.deps.Source, w.recordOptions()...)
	if err != nil {
		return Summary{}, err
	}
	summary := record.Summary(ctx, w.iconURL)
	summary.Color = w.cfg.Color
	return summary, nil
}

// PollOnce publishes every run verified after the watermark that was not
// published before, and returns how many it published. A listing or
// publish failure ends the cycle. The watermark only moves to a
// verification time once every run verified at that time is handled, so
// runs sharing a timestamp with a failed one are listed again.
func (w *WatchedLeaderboard) PollOnce(ctx context.Context) (int, error) {
	w.deps.Posted.EnsureLoaded(ctx)

	since := w.Since()
	published := 0
	var pending time.Time
	for run, err := range w.deps.Source.ListVerifiedRuns(ctx, w.cfg.GameID, &since) {
		if err != nil {
			return published, fmt.Errorf("list verified runs of %s: %w", w.cfg.GameName, err)
		}

		verified := run.VerifyDate()
		if !pending.IsZero() && verified.After(pending) {
			w.advance(ctx, pending)
		}
		pending = verified

		if w.deps.Posted.Contains(run.ID) {
			log.Debug().Msgf("[VerifiedRuns] Skipping already posted run %s", run.ID)
			metrics.RunSkipped(w.cfg.GameName)
			continue
		}

		summary, err := w.summarize(ctx, run)
		if err != nil {
			var stateErr *VerificationStateError
			if errors.As(err, &stateErr) {
				log.Error().Err(err).Msgf("[VerifiedRuns] Refusing to publish run %s", run.ID)
				continue
			}
			return published, err
		}

		log.Debug().Msgf("[VerifiedRuns] Posting run %s", run.Weblink)
		if err := w.deps.Publisher.Publish(ctx, w.cfg.ChannelID, summary); err != nil {
			return published, fmt.Errorf("publish run %s: %w", run.ID, err)
		}
		published++
		metrics.RunPublished(w.cfg.GameName)

		if err := w.deps.Posted.Add(ctx, run.ID); err != nil {
			log.Warn().Err(err).Msgf("[VerifiedRuns] Failed to persist posted run %s", run.ID)
		}
	}
	if !pending.IsZero() {
		w.advance(ctx, pending)
	}
	return published, nil
}

// advance moves the watermark forward to verified and persists it.
func (w *WatchedLeaderboard) advance(ctx context.Context, verified time.Time) {
	w.mu.Lock()
	if !verified.After(w.since) {
		w.mu.Unlock()
		return
	}
	w.since = verified
	w.mu.Unlock()

	if w.deps.Watermarks == nil {
		return
	}
	if err := w.deps.Watermarks.SaveWatermark(ctx, w.cfg.GameName, verified); err != nil {
		log.Warn().Err(err).Msgf("[VerifiedRuns] Failed to persist watermark of %s", w.cfg.GameName)
	}
}

// LatestSummary renders the game's most recently verified run without
// publishing it or touching the posted-run set.
func (w *WatchedLeaderboard) LatestSummary(ctx context.Context) (Summary, error) {
	run, err := w.deps.Source.GetLatestVerifiedRun(ctx, w.cfg.GameID)
	if err != nil {
		return Summary{}, err
	}
	return w.summarize(ctx, run)
}

// Run polls until ctx is cancelled, once immediately and then every poll
// interval.
func (w *WatchedLeaderboard) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.poll(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msgf("[VerifiedRuns] Stopped watching %s", w.cfg.GameName)
			return
		case <-ticker.C:
		}
	}
}

func (w *WatchedLeaderboard) poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("[VerifiedRuns] Poll of %s panicked: %v", w.cfg.GameName, r)
			metrics.PollCycle(w.cfg.GameName, fmt.Errorf("panic: %v", r))
		}
	}()

	published, err := w.PollOnce(ctx)
	metrics.PollCycle(w.cfg.GameName, err)

	w.mu.Lock()
	w.lastPolled = w.deps.Now()
	w.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msgf("[VerifiedRuns] Poll of %s failed after %d new runs", w.cfg.GameName, published)
		return
	}
	if published > 0 {
		log.Info().Msgf("[VerifiedRuns] Published %d new runs for %s", published, w.cfg.GameName)
	}
}
