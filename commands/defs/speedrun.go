package defs

import "github.com/bwmarrin/discordgo"

var LatestRun = &discordgo.ApplicationCommand{
	Name:        "latest-run",
	Description: "Preview the notification for a watched game's most recently verified run",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionString,
			Name:         "game",
			Description:  "Watched game",
			Required:     true,
			Autocomplete: true,
		},
	},
}

var Watched = &discordgo.ApplicationCommand{
	Name:        "watched",
	Description: "List the leaderboards watched for newly verified runs",
}

var BotStatus = &discordgo.ApplicationCommand{
	Name:        "bot-status",
	Description: "Display bot and system status information",
}
