package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"speedrun-bot/commands"
	"speedrun-bot/utils"
)

// Run opens the session, registers commands, starts the scheduler and
// blocks until SIGINT/SIGTERM or ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	b.RegisterCommands(commands.Definitions())
	b.scheduler.Start(ctx)

	log.Info().Msg("[Bot] Bot is now running. Press CTRL-C to exit.")
	utils.LogInfo(b.Session, b.GetConfig().Env.LogChannelID, "System", "Startup", "Bot has started successfully.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sc)

	select {
	case sig := <-sc:
		log.Info().Msgf("[Bot] Received %s", sig)
	case <-ctx.Done():
	}

	b.Close()
	return nil
}
