package handlers

import (
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speedrun-bot/model"
)

type reaction struct {
	channelID, messageID, emoji string
}

type thread struct {
	messageID, name string
}

type fakePBSession struct {
	reactions []reaction
	threads   []thread
}

func (f *fakePBSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if channelID != "pbs" {
		return nil, errors.New("unknown channel")
	}
	return &discordgo.Channel{ID: "pbs", GuildID: "guild"}, nil
}

func (f *fakePBSession) GuildEmoji(guildID, emojiID string, _ ...discordgo.RequestOption) (*discordgo.Emoji, error) {
	if guildID != "guild" || emojiID != "42" {
		return nil, errors.New("unknown emoji")
	}
	return &discordgo.Emoji{ID: "42", Name: "pog"}, nil
}

func (f *fakePBSession) MessageReactionAdd(channelID, messageID, emojiID string, _ ...discordgo.RequestOption) error {
	f.reactions = append(f.reactions, reaction{channelID, messageID, emojiID})
	return nil
}

func (f *fakePBSession) MessageThreadStart(_, messageID, name string, _ int, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.threads = append(f.threads, thread{messageID, name})
	return &discordgo.Channel{ID: "thread"}, nil
}

func media(contentType string) []*discordgo.MessageAttachment {
	return []*discordgo.MessageAttachment{{ID: "a", ContentType: contentType}}
}

func TestNewPersonalBest(t *testing.T) {
	session := &fakePBSession{}

	_, err := NewPersonalBest(session, model.PersonalBestConfig{ChannelID: "nope", EmojiID: "42"})
	assert.Error(t, err)
	_, err = NewPersonalBest(session, model.PersonalBestConfig{ChannelID: "pbs", EmojiID: "7"})
	assert.Error(t, err)

	pb, err := NewPersonalBest(session, model.PersonalBestConfig{ChannelID: "pbs", EmojiID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "pog:42", pb.emoji)
}

func TestPersonalBestShouldAct(t *testing.T) {
	pb := &PersonalBest{channelID: "pbs", emoji: "pog:42"}

	assert.True(t, pb.ShouldAct(&discordgo.Message{ChannelID: "pbs", Attachments: media("image/png")}))
	assert.True(t, pb.ShouldAct(&discordgo.Message{ChannelID: "pbs", Attachments: media("video/mp4")}))
	assert.False(t, pb.ShouldAct(&discordgo.Message{ChannelID: "pbs", Attachments: media("text/plain")}))
	assert.False(t, pb.ShouldAct(&discordgo.Message{ChannelID: "pbs"}))
	assert.False(t, pb.ShouldAct(&discordgo.Message{ChannelID: "general", Attachments: media("image/png")}))
}

func TestPersonalBestAct(t *testing.T) {
	session := &fakePBSession{}
	message := &discordgo.Message{ID: "m1", ChannelID: "pbs", Content: "sub 20!", Attachments: media("image/png")}

	(&PersonalBest{channelID: "pbs", emoji: "pog:42"}).Act(session, message)
	assert.Equal(t, []reaction{{"pbs", "m1", "pog:42"}}, session.reactions)
	assert.Empty(t, session.threads)

	(&PersonalBest{channelID: "pbs", emoji: "pog:42", createThread: true}).Act(session, message)
	assert.Equal(t, []thread{{"m1", "sub 20!"}}, session.threads)
}

func TestThreadTitle(t *testing.T) {
	long := strings.Repeat("a", 60)

	tests := []struct {
		name    string
		message *discordgo.Message
		want    string
	}{
		{"plain", &discordgo.Message{Content: "new PB"}, "new PB"},
		{"emotes", &discordgo.Message{Content: "finally <:pog:123> <a:dance:456>"}, "finally :pog: :dance:"},
		{"trimmed", &discordgo.Message{Content: long}, strings.Repeat("a", 50) + "..."},
		{"exactly fifty", &discordgo.Message{Content: long[:50]}, long[:50]},
		{"empty", &discordgo.Message{Author: &discordgo.User{Username: "museus"}}, "Discuss museus's PB here!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThreadTitle(tt.message))
		})
	}
}
