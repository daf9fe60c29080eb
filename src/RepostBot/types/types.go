package types

import "time"

// ImageFingerprint is the first-seen record for a perceptual hash within a
// guild. The compound unique index is what makes Claim atomic: whoever gets
// the row in first owns the fingerprint.
type ImageFingerprint struct {
	ID          uint64 `gorm:"primaryKey"`
	Fingerprint string `gorm:"size:80;not null;uniqueIndex:idx_fingerprint_guild"`
	GuildID     string `gorm:"size:64;not null;uniqueIndex:idx_fingerprint_guild"`
	ChannelID   string `gorm:"size:64;not null"`
	MessageID   string `gorm:"size:64;not null;index:idx_message_guild"`
	AuthorID    string `gorm:"size:64;not null"`
	SourceURL   string `gorm:"size:512"`
	CreatedAt   time.Time
}

// GuildConfig is written by !setup and read by everything else. A guild
// without a row is unconfigured and ignored.
type GuildConfig struct {
	GuildID               string `gorm:"primaryKey;size:64"`
	ActiveChannelID       string `gorm:"size:64;not null"`
	NotificationChannelID string `gorm:"size:64;not null"`
	UpdatedAt             time.Time
}

// PenaltyGrant tracks the restricted role applied after a confirmed repost.
// One row per member per guild; a repeat violation refreshes ExpiresAt on the
// same row rather than stacking. RevokedAt set means the grant is no longer
// active.
type PenaltyGrant struct {
	ID        uint64 `gorm:"primaryKey"`
	GuildID   string `gorm:"size:64;not null;uniqueIndex:idx_grant_guild_user"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_grant_guild_user"`
	RoleID    string `gorm:"size:64;not null"`
	GrantedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
	RevokedAt *time.Time
}
