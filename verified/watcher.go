package verified

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// LeaderboardWatcher is the registry of watched leaderboards, keyed by game
// name, and runs one poll loop per leaderboard.
type LeaderboardWatcher struct {
	deps Deps

	mu           sync.RWMutex
	leaderboards map[string]*WatchedLeaderboard
	started      map[string]bool
	wg           sync.WaitGroup
}

func NewLeaderboardWatcher(deps Deps) *LeaderboardWatcher {
	return &LeaderboardWatcher{
		deps:         deps,
		leaderboards: make(map[string]*WatchedLeaderboard),
		started:      make(map[string]bool),
	}
}

// AddGame creates a watched leaderboard and registers it. A later
// registration under the same game name replaces the earlier one.
func (lw *LeaderboardWatcher) AddGame(ctx context.Context, cfg LeaderboardConfig) (*WatchedLeaderboard, error) {
	leaderboard, err := NewWatchedLeaderboard(ctx, cfg, lw.deps)
	if err != nil {
		return nil, err
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, ok := lw.leaderboards[cfg.GameName]; ok {
		log.Warn().Msgf("[VerifiedRuns] %s is already watched, replacing it", cfg.GameName)
	}
	lw.leaderboards[cfg.GameName] = leaderboard
	return leaderboard, nil
}

func (lw *LeaderboardWatcher) Get(gameName string) (*WatchedLeaderboard, bool) {
	lw.mu.RLock()
	defer lw.mu.RUnlock()
	leaderboard, ok := lw.leaderboards[gameName]
	return leaderboard, ok
}

// Leaderboards returns the registered leaderboards sorted by game name.
func (lw *LeaderboardWatcher) Leaderboards() []*WatchedLeaderboard {
	lw.mu.RLock()
	defer lw.mu.RUnlock()

	leaderboards := make([]*WatchedLeaderboard, 0, len(lw.leaderboards))
	for _, leaderboard := range lw.leaderboards {
		leaderboards = append(leaderboards, leaderboard)
	}
	sort.Slice(leaderboards, func(i, j int) bool {
		return leaderboards[i].GameName() < leaderboards[j].GameName()
	})
	return leaderboards
}

// StartAll launches the poll loop of every leaderboard not yet started. The
// loops stop when ctx is cancelled.
func (lw *LeaderboardWatcher) StartAll(ctx context.Context) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	for name, leaderboard := range lw.leaderboards {
		if lw.started[name] {
			continue
		}
		lw.started[name] = true
		lw.wg.Add(1)
		go func(l *WatchedLeaderboard) {
			defer lw.wg.Done()
			l.Run(ctx)
		}(leaderboard)
	}
	log.Info().Msgf("[VerifiedRuns] Started %d leaderboard watchers", len(lw.started))
}

// Wait blocks until every started loop has returned.
func (lw *LeaderboardWatcher) Wait() {
	lw.wg.Wait()
}
