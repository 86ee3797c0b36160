package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"90", 90 * time.Second},
		{"2d", 48 * time.Hour},
		{"1m30s", 90 * time.Second},
		{" 5m ", 5 * time.Minute},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "xd", "soon"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, 0xFACF24, ParseHexColor("#FACF24"))
	assert.Equal(t, 0x00ff00, ParseHexColor("00ff00"))
	assert.Equal(t, DefaultEmbedColor, ParseHexColor(""))
	assert.Equal(t, DefaultEmbedColor, ParseHexColor("#nothex"))
	assert.Equal(t, DefaultEmbedColor, ParseHexColor("#1FFFFFF"))
}

func TestLogEmbed(t *testing.T) {
	embed := logEmbed(Warn, "VerifiedRuns", "Add leaderboard", "")

	assert.Equal(t, "WARN Log", embed.Title)
	assert.Equal(t, 15105570, embed.Color)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "VerifiedRuns", embed.Fields[0].Value)
	assert.Equal(t, "-", embed.Fields[2].Value)

	long := logEmbed(Error, "VerifiedRuns", "Load leaderboards", strings.Repeat("x", 2000))
	assert.Len(t, long.Fields[2].Value, 1024)
	assert.True(t, strings.HasSuffix(long.Fields[2].Value, "..."))
}

func TestSendLogWithoutChannelOnlyLogsLocally(t *testing.T) {
	assert.NoError(t, LogInfo(nil, "", "Bot", "Started", "ok"))
}

func TestCooldown(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldown(30 * time.Second)
	c.now = func() time.Time { return now }

	ok, _ := c.CheckAndSet("alice")
	assert.True(t, ok)

	now = now.Add(10 * time.Second)
	ok, wait := c.CheckAndSet("alice")
	assert.False(t, ok)
	assert.Equal(t, 20*time.Second, wait)

	ok, _ = c.CheckAndSet("bob")
	assert.True(t, ok)

	now = now.Add(20 * time.Second)
	ok, _ = c.CheckAndSet("alice")
	assert.True(t, ok)
	assert.Len(t, c.last, 2)
}

func TestSetupLoggerLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetupLogger("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	SetupLogger("loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
