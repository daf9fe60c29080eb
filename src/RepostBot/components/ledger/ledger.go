package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/repostguard/repostbot/src/RepostBot/types"
	"gorm.io/gorm"
)

// ErrClaimRace is returned when a claim lost to an existing record that was
// deleted before it could be read back. Callers treat it as skip without
// penalty; it only happens when a claim races a message deletion.
var ErrClaimRace = errors.New("fingerprint record vanished during claim")

type Outcome int

const (
	Inserted Outcome = iota
	AlreadyExists
)

type ClaimResult struct {
	Outcome Outcome
	// Record is the winning row: the freshly inserted one on Inserted, the
	// first-seen one on AlreadyExists.
	Record types.ImageFingerprint
}

// Provenance identifies where a fingerprint was first seen.
type Provenance struct {
	ChannelID string
	MessageID string
	AuthorID  string
	SourceURL string
}

// Ledger is the per-guild set of first-seen fingerprints. The unique index
// on (fingerprint, guild_id) is the only synchronization in the system.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Claim registers first ownership of a fingerprint within a guild. It is a
// plain INSERT; a duplicate-key error from the store is not a failure but
// the AlreadyExists signal, answered with the first-seen record.
func (l *Ledger) Claim(ctx context.Context, fp, guildID string, prov Provenance) (ClaimResult, error) {
	rec := types.ImageFingerprint{
		Fingerprint: fp,
		GuildID:     guildID,
		ChannelID:   prov.ChannelID,
		MessageID:   prov.MessageID,
		AuthorID:    prov.AuthorID,
		SourceURL:   prov.SourceURL,
	}

	err := l.db.WithContext(ctx).Create(&rec).Error
	if err == nil {
		return ClaimResult{Outcome: Inserted, Record: rec}, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return ClaimResult{}, fmt.Errorf("claim insert: %w", err)
	}

	var existing types.ImageFingerprint
	err = l.db.WithContext(ctx).
		Where("fingerprint = ? AND guild_id = ?", fp, guildID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ClaimResult{}, ErrClaimRace
	}
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim lookup: %w", err)
	}

	return ClaimResult{Outcome: AlreadyExists, Record: existing}, nil
}

// FindByMessage returns the record whose provenance matches the message, or
// nil when there is none.
func (l *Ledger) FindByMessage(ctx context.Context, messageID, guildID string) (*types.ImageFingerprint, error) {
	var rec types.ImageFingerprint
	err := l.db.WithContext(ctx).
		Where("message_id = ? AND guild_id = ?", messageID, guildID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RemoveByMessage deletes all records originating from the message. No-op
// when nothing matches. A resubmission of the same image afterwards is
// treated as new.
func (l *Ledger) RemoveByMessage(ctx context.Context, messageID, guildID string) error {
	return l.db.WithContext(ctx).
		Where("message_id = ? AND guild_id = ?", messageID, guildID).
		Delete(&types.ImageFingerprint{}).Error
}
