package penalty

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/repostguard/repostbot/src/RepostBot/config"
	"github.com/repostguard/repostbot/src/RepostBot/data"
	"github.com/repostguard/repostbot/src/RepostBot/types"
	"github.com/repostguard/repostbot/src/discord"
	"gorm.io/gorm"
)

// Violation is a confirmed duplicate: the offending message plus the
// first-seen record it collided with.
type Violation struct {
	GuildID         string
	UserID          string
	ChannelID       string
	MessageID       string
	NotifyChannelID string
	SourceURL       string
	Original        types.ImageFingerprint
}

// Controller applies the moderation outcome for a violation and manages the
// time-boxed reversal. Grants live in the database, not in timers, so expiry
// survives restarts.
type Controller struct {
	db  *gorm.DB
	msg discord.Messenger
	rdb *redis.Client
	cfg config.Config
}

func New(db *gorm.DB, msg discord.Messenger, rdb *redis.Client, cfg config.Config) *Controller {
	return &Controller{db: db, msg: msg, rdb: rdb, cfg: cfg}
}

// Punish runs the full violation outcome: role action per policy, removal of
// the offending message, member DM, channel announcement, event publish.
// Each step is independently failable and logged; none aborts the others.
// Calling it twice for the same member is safe: role membership and the
// existing grant row are checked before mutating, and a repeat violation
// refreshes the expiry rather than stacking it.
func (c *Controller) Punish(ctx context.Context, v Violation) {
	switch c.cfg.PenaltyPolicy {
	case config.PolicyTempRole:
		if err := c.applyTempRole(ctx, v); err != nil {
			log.Printf("penalty: temp role for %s in guild %s: %v", v.UserID, v.GuildID, err)
		}
	case config.PolicyRevokeTrusted:
		if err := c.revokeTrusted(v); err != nil {
			log.Printf("penalty: revoke trusted for %s in guild %s: %v", v.UserID, v.GuildID, err)
		}
	}

	if err := c.msg.DeleteMessage(v.ChannelID, v.MessageID); err != nil && !errors.Is(err, discord.ErrAlreadyDeleted) {
		log.Printf("penalty: delete message %s: %v", v.MessageID, err)
	}

	dm := fmt.Sprintf(
		"Your image was removed: it is a repost of an image already shared in this server (first posted at %s).",
		v.Original.SourceURL,
	)
	if err := c.msg.DirectMessage(v.UserID, dm); err != nil {
		if errors.Is(err, discord.ErrDMClosed) {
			log.Printf("penalty: member %s has DMs closed", v.UserID)
		} else {
			log.Printf("penalty: DM member %s: %v", v.UserID, err)
		}
	}

	if v.NotifyChannelID != "" {
		note := fmt.Sprintf("Removed a repost by <@%s>. Original: %s", v.UserID, v.Original.SourceURL)
		if err := c.msg.ChannelMessage(v.NotifyChannelID, note); err != nil {
			log.Printf("penalty: notify channel %s: %v", v.NotifyChannelID, err)
		}
	}

	if c.rdb != nil {
		err := data.PublishModerationEvent(ctx, c.rdb, map[string]interface{}{
			"action":   "repost_removed",
			"guild":    v.GuildID,
			"user":     v.UserID,
			"message":  v.MessageID,
			"original": v.Original.MessageID,
		})
		if err != nil {
			log.Printf("penalty: publish event: %v", err)
		}
	}
}

func (c *Controller) applyTempRole(ctx context.Context, v Violation) error {
	roleID, err := c.msg.FindOrCreateRole(v.GuildID, c.cfg.PenaltyRoleName)
	if err != nil {
		return fmt.Errorf("resolve role: %w", err)
	}

	has, err := c.msg.MemberHasRole(v.GuildID, v.UserID, roleID)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !has {
		if err := c.msg.GrantRole(v.GuildID, v.UserID, roleID); err != nil {
			return fmt.Errorf("grant role: %w", err)
		}
	}

	now := time.Now()
	grant := types.PenaltyGrant{GuildID: v.GuildID, UserID: v.UserID}
	return c.db.WithContext(ctx).
		Where(types.PenaltyGrant{GuildID: v.GuildID, UserID: v.UserID}).
		Assign(map[string]interface{}{
			"role_id":    roleID,
			"granted_at": now,
			"expires_at": now.Add(c.cfg.PenaltyDuration),
			"revoked_at": nil,
		}).
		FirstOrCreate(&grant).Error
}

func (c *Controller) revokeTrusted(v Violation) error {
	roleID, err := c.msg.FindRole(v.GuildID, c.cfg.TrustedRoleName)
	if err != nil {
		return fmt.Errorf("resolve role: %w", err)
	}
	if roleID == "" {
		return nil
	}

	has, err := c.msg.MemberHasRole(v.GuildID, v.UserID, roleID)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !has {
		return nil
	}
	return c.msg.RevokeRole(v.GuildID, v.UserID, roleID)
}
