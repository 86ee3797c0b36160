package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"speedrun-bot/bot"
	"speedrun-bot/speedrun"
	"speedrun-bot/utils"
	"speedrun-bot/verified"
)

const (
	latestRunTimeout  = 30 * time.Second
	latestRunCooldown = 30 * time.Second
	maxEmbedFields    = 25
)

var latestRunLimiter = utils.NewCooldown(latestRunCooldown)

func commandHandlers(b *bot.Bot) map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"latest-run": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleLatestRun(s, i, b)
		},
		"watched": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleWatched(s, i, b)
		},
		"bot-status": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			SystemInfoHandler(s, i, b)
		},
	}
}

// HandleLatestRun previews the notification of a watched game's most
// recently verified run. Nothing is posted or recorded.
func HandleLatestRun(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	game := ""
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "game" {
			game = opt.StringValue()
		}
	}

	watched, ok := b.Watcher.Get(game)
	if !ok {
		utils.SendErrorResponse(s, i, fmt.Sprintf("%q is not a watched game.", game))
		return
	}

	if ok, wait := latestRunLimiter.CheckAndSet(interactionUserID(i)); !ok {
		utils.SendErrorResponse(s, i, fmt.Sprintf("Please wait %s before asking again.", wait.Round(time.Second)))
		return
	}

	if err := utils.DeferResponse(s, i, true); err != nil {
		log.Error().Err(err).Msg("[LatestRun] Failed to defer response")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), latestRunTimeout)
	defer cancel()

	summary, err := watched.LatestSummary(ctx)
	switch {
	case errors.Is(err, speedrun.ErrNotFound):
		utils.SendFollowUpError(s, i.Interaction, fmt.Sprintf("%s has no verified runs yet.", watched.GameName()))
	case err != nil:
		log.Error().Err(err).Msgf("[LatestRun] Failed to build summary for %s", watched.GameName())
		utils.SendFollowUpError(s, i.Interaction, "Could not reach speedrun.com, try again later.")
	default:
		utils.SendFollowUpEmbed(s, i.Interaction, bot.SummaryEmbed(summary))
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// HandleWatched lists every watched leaderboard with its poll state.
func HandleWatched(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	utils.SendEmbedResponse(s, i, WatchedEmbed(b.Watcher.Leaderboards()), false)
}

func WatchedEmbed(leaderboards []*verified.WatchedLeaderboard) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Watched leaderboards",
		Color: 0x5865F2,
	}
	if len(leaderboards) == 0 {
		embed.Description = "No leaderboards are being watched."
		return embed
	}

	for _, lb := range leaderboards {
		if len(embed.Fields) == maxEmbedFields {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("and %d more", len(leaderboards)-maxEmbedFields)}
			break
		}
		lines := []string{
			fmt.Sprintf("Channel: <#%s>", lb.ChannelID()),
			fmt.Sprintf("Every %s", lb.PollInterval()),
			fmt.Sprintf("Runs verified after <t:%d:f>", lb.Since().Unix()),
		}
		if polled := lb.LastPolled(); !polled.IsZero() {
			lines = append(lines, fmt.Sprintf("Last polled <t:%d:R>", polled.Unix()))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s (%s)", lb.GameName(), lb.GameID()),
			Value: strings.Join(lines, "\n"),
		})
	}
	return embed
}
