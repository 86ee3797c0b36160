package commands

import (
	"github.com/bwmarrin/discordgo"

	"speedrun-bot/commands/defs"
)

// Definitions returns every slash command the bot registers.
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		defs.LatestRun,
		defs.Watched,
		defs.BotStatus,
	}
}
