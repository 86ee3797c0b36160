package handlers

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"speedrun-bot/bot"
	"speedrun-bot/config"
	"speedrun-bot/model"
	"speedrun-bot/utils"
)

func Register(b *bot.Bot) {
	b.CommandHandlers = commandHandlers(b)
	addHandlers(b)
}

func addHandlers(b *bot.Bot) {
	var (
		mu    sync.RWMutex
		hooks []*PersonalBest
		once  sync.Once
	)

	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info().Msgf("[Bot] Logged in as: %v", r.User.String())
		// Ready fires again on every reconnect.
		once.Do(func() {
			resolved := personalBestHooks(b)
			mu.Lock()
			hooks = resolved
			mu.Unlock()
		})
	})

	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
			return
		}
		mu.RLock()
		defer mu.RUnlock()
		for _, hook := range hooks {
			if hook.ShouldAct(m.Message) {
				hook.Act(s, m.Message)
			}
		}
	})

	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			if h, ok := b.CommandHandlers[i.ApplicationCommandData().Name]; ok {
				h(s, i)
			}
		case discordgo.InteractionApplicationCommandAutocomplete:
			handleAutocomplete(s, i, b)
		}
	})
}

// personalBestHooks resolves every enabled personal best channel. A channel
// that fails to resolve is reported and left out.
func personalBestHooks(b model.Bot) []*PersonalBest {
	s, cfg := b.GetSession(), b.GetConfig()
	entries, err := config.PersonalBests(cfg.PersonalBests)
	if err != nil {
		utils.LogWarn(s, cfg.Env.LogChannelID, "PersonalBest", "Load config", err.Error())
	}

	var hooks []*PersonalBest
	for _, entry := range entries {
		hook, err := NewPersonalBest(s, entry)
		if err != nil {
			utils.LogError(s, cfg.Env.LogChannelID, "PersonalBest", "Register hook",
				fmt.Sprintf("channel %s: %v", entry.ChannelID, err))
			continue
		}
		log.Info().Msgf("[PersonalBest] Watching channel %s", entry.ChannelID)
		hooks = append(hooks, hook)
	}
	return hooks
}
