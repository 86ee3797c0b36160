package verified

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardWatcherRegistry(t *testing.T) {
	h := newHarness()
	h.publisher.channels["chan2"] = true
	watcher := NewLeaderboardWatcher(h.deps())
	ctx := context.Background()

	hades, err := watcher.AddGame(ctx, LeaderboardConfig{GameName: "Hades", GameID: "o1y9j9v6", ChannelID: "chan1"})
	require.NoError(t, err)
	_, err = watcher.AddGame(ctx, LeaderboardConfig{GameName: "Celeste", GameID: "o1y9wo6q", ChannelID: "chan2"})
	require.NoError(t, err)

	got, ok := watcher.Get("Hades")
	require.True(t, ok)
	assert.Same(t, hades, got)
	assert.Equal(t, DefaultPollInterval, got.PollInterval())

	leaderboards := watcher.Leaderboards()
	require.Len(t, leaderboards, 2)
	assert.Equal(t, "Celeste", leaderboards[0].GameName())
	assert.Equal(t, "Hades", leaderboards[1].GameName())
}

func TestLeaderboardWatcherLaterRegistrationReplaces(t *testing.T) {
	h := newHarness()
	h.publisher.channels["chan2"] = true
	watcher := NewLeaderboardWatcher(h.deps())
	ctx := context.Background()

	_, err := watcher.AddGame(ctx, LeaderboardConfig{GameName: "Hades", GameID: "o1y9j9v6", ChannelID: "chan1"})
	require.NoError(t, err)
	second, err := watcher.AddGame(ctx, LeaderboardConfig{GameName: "Hades", GameID: "o1y9j9v6", ChannelID: "chan2"})
	require.NoError(t, err)

	got, ok := watcher.Get("Hades")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, watcher.Leaderboards(), 1)
}

func TestLeaderboardWatcherFailedAddDoesNotRegister(t *testing.T) {
	h := newHarness()
	watcher := NewLeaderboardWatcher(h.deps())

	_, err := watcher.AddGame(context.Background(), LeaderboardConfig{GameName: "Hades", GameID: "o1y9j9v6", ChannelID: "nope"})

	require.Error(t, err)
	_, ok := watcher.Get("Hades")
	assert.False(t, ok)
}

func TestLeaderboardWatcherStartAllRunsEveryLeaderboard(t *testing.T) {
	h := newHarness()
	h.publisher.channels["chan2"] = true
	h.source.addRuns(verifiedRun("R1", t0.Add(time.Second)))
	watcher := NewLeaderboardWatcher(h.deps())
	start := t0

	for _, cfg := range []LeaderboardConfig{
		{GameName: "Hades", GameID: "o1y9j9v6", ChannelID: "chan1", Start: &start},
		{GameName: "Hades II", GameID: "hades2", ChannelID: "chan2", Start: &start},
	} {
		_, err := watcher.AddGame(context.Background(), cfg)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	watcher.StartAll(ctx)
	watcher.StartAll(ctx)

	require.Eventually(t, func() bool {
		for _, leaderboard := range watcher.Leaderboards() {
			if leaderboard.LastPolled().IsZero() {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)

	cancel()
	watcher.Wait()

	assert.Len(t, h.publisher.urls(), 1)
	assert.Equal(t, []string{"R1"}, h.store.persisted())
}
