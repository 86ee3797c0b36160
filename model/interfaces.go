package model

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Bot provides an interface for bot functionality to avoid circular dependencies.
type Bot interface {
	GetConfig() *Config
	GetSession() *discordgo.Session
}

// PostedRunStore persists the ordered ids of runs already published.
type PostedRunStore interface {
	// LoadPostedRuns returns the persisted ids, oldest first. A store that
	// was never written returns an empty list and no error.
	LoadPostedRuns(ctx context.Context) ([]string, error)
	// SavePostedRuns persists ids. The set only grows, so a store may keep
	// ids it already holds in their original position.
	SavePostedRuns(ctx context.Context, ids []string) error
}

// WatermarkStore persists the verification time each watched leaderboard
// has been processed up to.
type WatermarkStore interface {
	LoadWatermark(ctx context.Context, key string) (time.Time, bool, error)
	SaveWatermark(ctx context.Context, key string, watermark time.Time) error
}
