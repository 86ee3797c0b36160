package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"speedrun-bot/verified"
)

// channelSender is the part of *discordgo.Session the publisher uses.
type channelSender interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordPublisher posts verified run summaries to Discord channels.
type DiscordPublisher struct {
	session channelSender
}

func NewDiscordPublisher(session channelSender) *DiscordPublisher {
	return &DiscordPublisher{session: session}
}

func (p *DiscordPublisher) ResolveChannel(ctx context.Context, channelID string) error {
	channel, err := p.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	switch channel.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		return nil
	default:
		return fmt.Errorf("channel %s (type %d) cannot receive messages", channelID, channel.Type)
	}
}

func (p *DiscordPublisher) Publish(ctx context.Context, channelID string, summary verified.Summary) error {
	_, err := p.session.ChannelMessageSendEmbed(channelID, SummaryEmbed(summary), discordgo.WithContext(ctx))
	return err
}

func (p *DiscordPublisher) Announce(ctx context.Context, channelID, text string) error {
	_, err := p.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

// SummaryEmbed renders a run summary as a Discord embed. The title is shown
// as the embed author, next to the game icon, and links to the run.
func SummaryEmbed(summary verified.Summary) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(summary.Fields))
	for _, field := range summary.Fields {
		value := field.Value
		if value == "" {
			// Discord rejects empty field values.
			value = "-"
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   field.Name,
			Value:  value,
			Inline: field.Inline,
		})
	}

	embed := &discordgo.MessageEmbed{
		URL:   summary.URL,
		Color: summary.Color,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    summary.Title,
			URL:     summary.URL,
			IconURL: summary.IconURL,
		},
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text:    summary.Footer,
			IconURL: summary.FooterIconURL,
		},
	}
	if !summary.Timestamp.IsZero() {
		embed.Timestamp = summary.Timestamp.UTC().Format(time.RFC3339)
	}
	return embed
}
