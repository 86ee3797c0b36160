package handlers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"speedrun-bot/model"
)

const threadTitleLimit = 50

var emotePattern = regexp.MustCompile(`<a?:(\S+?):\d+>`)

// personalBestSession is the part of *discordgo.Session the personal best
// hook uses.
type personalBestSession interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildEmoji(guildID, emojiID string, options ...discordgo.RequestOption) (*discordgo.Emoji, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageThreadStart(channelID, messageID string, name string, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// PersonalBest reacts to media posted in a personal best channel and
// optionally opens a discussion thread on it.
type PersonalBest struct {
	channelID    string
	emoji        string
	createThread bool
}

// NewPersonalBest resolves the configured channel and custom emoji.
func NewPersonalBest(s personalBestSession, cfg model.PersonalBestConfig) (*PersonalBest, error) {
	channel, err := s.Channel(cfg.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("resolve channel %s: %w", cfg.ChannelID, err)
	}
	emoji, err := s.GuildEmoji(channel.GuildID, cfg.EmojiID)
	if err != nil {
		return nil, fmt.Errorf("resolve emoji %s in guild %s: %w", cfg.EmojiID, channel.GuildID, err)
	}
	return &PersonalBest{
		channelID:    channel.ID,
		emoji:        emoji.APIName(),
		createThread: cfg.CreateThread,
	}, nil
}

// ShouldAct reports whether m is a post in the channel carrying an image or
// a video.
func (p *PersonalBest) ShouldAct(m *discordgo.Message) bool {
	if m.ChannelID != p.channelID {
		return false
	}
	for _, attachment := range m.Attachments {
		if strings.Contains(attachment.ContentType, "image") || strings.Contains(attachment.ContentType, "video") {
			return true
		}
	}
	return false
}

func (p *PersonalBest) Act(s personalBestSession, m *discordgo.Message) {
	log.Debug().Msgf("[PersonalBest] Reacting to %s", m.ID)
	if err := s.MessageReactionAdd(m.ChannelID, m.ID, p.emoji); err != nil {
		log.Error().Err(err).Msgf("[PersonalBest] Failed to react to %s", m.ID)
	}

	if !p.createThread {
		return
	}
	log.Debug().Msg("[PersonalBest] Creating a thread!")
	if _, err := s.MessageThreadStart(m.ChannelID, m.ID, ThreadTitle(m), 1440); err != nil {
		log.Error().Err(err).Msgf("[PersonalBest] Failed to create thread on %s", m.ID)
	}
}

// ThreadTitle names a discussion thread after the message text, with custom
// emotes shortened to ":name:" and at most 50 characters kept.
func ThreadTitle(m *discordgo.Message) string {
	if m.Content == "" {
		author := "someone"
		if m.Author != nil {
			author = m.Author.Username
		}
		return fmt.Sprintf("Discuss %s's PB here!", author)
	}

	title := emotePattern.ReplaceAllString(m.Content, ":$1:")
	runes := []rune(title)
	if len(runes) > threadTitleLimit {
		title = string(runes[:threadTitleLimit]) + "..."
	}
	return title
}
