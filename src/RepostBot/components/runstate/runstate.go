package runstate

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/repostguard/repostbot/src/RepostBot/data"
)

// Gate is the per-guild enabled/disabled flag, read before every moderation
// session. With Redis configured the flag survives restarts; without it the
// gate is volatile and defaults to enabled.
type Gate struct {
	rdb   *redis.Client
	mu    sync.RWMutex
	local map[string]bool
}

func New(rdb *redis.Client) *Gate {
	return &Gate{
		rdb:   rdb,
		local: make(map[string]bool),
	}
}

func (g *Gate) IsEnabled(ctx context.Context, guildID string) bool {
	if g.rdb != nil {
		enabled, found, err := data.GetRunState(ctx, g.rdb, guildID)
		if err == nil {
			if !found {
				return true
			}
			return enabled
		}
		log.Printf("runstate: redis read failed for guild %s, using local state: %v", guildID, err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	enabled, found := g.local[guildID]
	if !found {
		return true
	}
	return enabled
}

func (g *Gate) SetEnabled(ctx context.Context, guildID string, enabled bool) {
	g.mu.Lock()
	g.local[guildID] = enabled
	g.mu.Unlock()

	if g.rdb != nil {
		if err := data.SetRunState(ctx, g.rdb, guildID, enabled); err != nil {
			log.Printf("runstate: redis write failed for guild %s: %v", guildID, err)
		}
	}
}
