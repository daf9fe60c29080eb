package penalty

import (
	"context"
	"log"
	"time"

	"github.com/repostguard/repostbot/src/RepostBot/types"
)

// Run reconciles outstanding grants immediately (grants past due while the
// process was down are reversed right away), then sweeps on a ticker until
// the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.Sweep(ctx)

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep reverses every grant whose expiry has passed. A failed role removal
// leaves the row untouched so the next sweep retries it.
func (c *Controller) Sweep(ctx context.Context) {
	var due []types.PenaltyGrant
	err := c.db.WithContext(ctx).
		Where("revoked_at IS NULL AND expires_at <= ?", time.Now()).
		Find(&due).Error
	if err != nil {
		log.Printf("penalty: sweep query: %v", err)
		return
	}

	for _, grant := range due {
		if err := c.expire(ctx, grant); err != nil {
			log.Printf("penalty: expire grant %d (guild %s, user %s): %v",
				grant.ID, grant.GuildID, grant.UserID, err)
		}
	}
}

func (c *Controller) expire(ctx context.Context, grant types.PenaltyGrant) error {
	has, err := c.msg.MemberHasRole(grant.GuildID, grant.UserID, grant.RoleID)
	if err != nil {
		return err
	}
	if has {
		if err := c.msg.RevokeRole(grant.GuildID, grant.UserID, grant.RoleID); err != nil {
			return err
		}
	}

	now := time.Now()
	return c.db.WithContext(ctx).
		Model(&types.PenaltyGrant{}).
		Where("id = ? AND revoked_at IS NULL", grant.ID).
		Update("revoked_at", now).Error
}
