package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"speedrun-bot/config"
	"speedrun-bot/metrics"
	"speedrun-bot/utils"
)

// Scheduler manages the background work of the bot: the verified-run poll
// loops and the metrics endpoint.
type Scheduler struct {
	bot    *Bot
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewScheduler(bot *Bot) *Scheduler {
	return &Scheduler{bot: bot}
}

// Start begins all background tasks. They stop on Stop or when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	cfg := s.bot.GetConfig()

	if cfg.Metrics.Enabled {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
				log.Error().Err(err).Msg("[Metrics] Server stopped")
			}
		}()
	}

	if !cfg.VerifiedRuns.Enabled {
		log.Info().Msg("[VerifiedRuns] Disabled in config.")
		return
	}
	s.startVerifiedRuns(ctx)
}

func (s *Scheduler) startVerifiedRuns(ctx context.Context) {
	cfg := s.bot.GetConfig()
	session := s.bot.Session

	s.bot.Posted.EnsureLoaded(ctx)

	leaderboards, err := config.Leaderboards(cfg.VerifiedRuns)
	if err != nil {
		utils.LogWarn(session, cfg.Env.LogChannelID, "VerifiedRuns", "Load leaderboards", err.Error())
	}

	for _, leaderboard := range leaderboards {
		if _, err := s.bot.Watcher.AddGame(ctx, leaderboard); err != nil {
			utils.LogError(session, cfg.Env.LogChannelID, "VerifiedRuns", "Add leaderboard",
				fmt.Sprintf("%s: %v", leaderboard.GameName, err))
			continue
		}
	}

	s.bot.Watcher.StartAll(ctx)
}

// Stop terminates all scheduled tasks gracefully.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		log.Info().Msg("[Scheduler] Stopping scheduler...")
		if s.cancel != nil {
			s.cancel()
		}
		s.bot.Watcher.Wait()
		s.wg.Wait()
		log.Info().Msg("[Scheduler] Scheduler stopped.")
	})
}
