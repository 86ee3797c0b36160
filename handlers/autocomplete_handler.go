package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"speedrun-bot/bot"
	"speedrun-bot/verified"
)

const maxChoices = 25

func handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	data := i.ApplicationCommandData()
	var choices []*discordgo.ApplicationCommandOptionChoice

	switch data.Name {
	case "latest-run":
		for _, opt := range data.Options {
			if opt.Focused && opt.Name == "game" {
				choices = gameChoices(b.Watcher.Leaderboards(), opt.StringValue())
			}
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("[Autocomplete] Failed to respond")
	}
}

// gameChoices offers the watched games whose name contains the typed text.
func gameChoices(leaderboards []*verified.WatchedLeaderboard, typed string) []*discordgo.ApplicationCommandOptionChoice {
	typed = strings.ToLower(typed)
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, lb := range leaderboards {
		if !strings.Contains(strings.ToLower(lb.GameName()), typed) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  lb.GameName(),
			Value: lb.GameName(),
		})
		if len(choices) == maxChoices {
			break
		}
	}
	return choices
}
