package utils

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultEmbedColor is speedrun.com yellow.
const DefaultEmbedColor = 0xFACF24

// ParseHexColor parses a hex color string (like "#FACF24") into an integer for Discord embeds.
// Returns DefaultEmbedColor if parsing fails.
func ParseHexColor(hexColor string) int {
	if hexColor == "" {
		return DefaultEmbedColor
	}

	hexColor = strings.TrimPrefix(hexColor, "#")

	colorInt, err := strconv.ParseInt(hexColor, 16, 64)
	if err != nil || colorInt < 0 || colorInt > 0xFFFFFF {
		log.Warn().Err(err).Msgf("[Config] Failed to parse hex color '%s'", hexColor)
		return DefaultEmbedColor
	}

	return int(colorInt)
}
