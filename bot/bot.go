package bot

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"speedrun-bot/model"
	"speedrun-bot/speedrun"
	"speedrun-bot/verified"
)

var _ model.Bot = (*Bot)(nil)

type Bot struct {
	Session            *discordgo.Session
	RegisteredCommands []*discordgo.ApplicationCommand
	config             atomic.Value // *model.Config
	CommandHandlers    map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)

	Speedrun  *speedrun.Client
	Posted    *verified.PostedRuns
	Watcher   *verified.LeaderboardWatcher
	Publisher *DiscordPublisher
	StartedAt time.Time

	store     io.Closer
	scheduler *Scheduler
}

func (b *Bot) GetConfig() *model.Config {
	return b.config.Load().(*model.Config)
}

func (b *Bot) GetSession() *discordgo.Session {
	return b.Session
}

// Stores are the persistence backends of the verified-run pipeline. Closer
// is optional.
type Stores struct {
	PostedRuns model.PostedRunStore
	Watermarks model.WatermarkStore
	Closer     io.Closer
}

func New(cfg *model.Config, client *speedrun.Client, stores Stores) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Env.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	publisher := NewDiscordPublisher(dg)
	posted := verified.NewPostedRuns(stores.PostedRuns)

	b := &Bot{
		Session:   dg,
		Speedrun:  client,
		Posted:    posted,
		Publisher: publisher,
		Watcher: verified.NewLeaderboardWatcher(verified.Deps{
			Source:     client,
			Publisher:  publisher,
			Posted:     posted,
			Watermarks: stores.Watermarks,
		}),
		StartedAt: time.Now(),
		store:     stores.Closer,
	}
	b.config.Store(cfg)
	b.scheduler = NewScheduler(b)
	return b, nil
}

// AppID is the configured application id, or the bot user's id once the
// session is ready.
func (b *Bot) AppID() string {
	if id := b.GetConfig().Env.AppID; id != "" {
		return id
	}
	if b.Session.State != nil && b.Session.State.User != nil {
		return b.Session.State.User.ID
	}
	return ""
}

func (b *Bot) Close() {
	log.Info().Msg("[Bot] Gracefully shutting down.")
	b.scheduler.Stop()

	if !b.GetConfig().Env.DisableCommandUnregister {
		b.UnregisterCommands()
	}
	if err := b.Session.Close(); err != nil {
		log.Warn().Err(err).Msg("[Bot] Error closing session")
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			log.Warn().Err(err).Msg("[Storage] Error closing store")
		}
	}
}

// RegisterCommands replaces the application's global commands.
func (b *Bot) RegisterCommands(cmds []*discordgo.ApplicationCommand) {
	log.Info().Msgf("[Bot] Registering %d commands...", len(cmds))
	registered, err := b.Session.ApplicationCommandBulkOverwrite(b.AppID(), "", cmds)
	if err != nil {
		log.Error().Err(err).Msg("[Bot] Cannot register commands")
		return
	}
	b.RegisteredCommands = registered
}

func (b *Bot) UnregisterCommands() {
	for _, cmd := range b.RegisteredCommands {
		if err := b.Session.ApplicationCommandDelete(b.AppID(), "", cmd.ID); err != nil {
			log.Warn().Err(err).Msgf("[Bot] Cannot delete command %s", cmd.Name)
		}
	}
	b.RegisteredCommands = nil
}
