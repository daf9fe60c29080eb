package webserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/repostguard/repostbot/src/RepostBot/data"
	"github.com/repostguard/repostbot/src/RepostBot/types"
	"gorm.io/gorm"
)

// New builds the read-only operator API that shares the bot's database.
func New(db *gorm.DB, rdb *redis.Client) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery(), cors.Default())
	attachRoutes(g, db, rdb)
	return g
}

func attachRoutes(g *gin.Engine, db *gorm.DB, rdb *redis.Client) {
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.Group("/v1")

	v1.GET("/guilds/:id/fingerprints", func(c *gin.Context) {
		var recs []types.ImageFingerprint
		if err := db.Where("guild_id = ?", c.Param("id")).
			Order("created_at DESC").Limit(200).Find(&recs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, recs)
	})

	v1.GET("/guilds/:id/grants", func(c *gin.Context) {
		var grants []types.PenaltyGrant
		if err := db.Where("guild_id = ?", c.Param("id")).
			Order("expires_at DESC").Limit(200).Find(&grants).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, grants)
	})

	v1.GET("/guilds/:id/state", func(c *gin.Context) {
		guildID := c.Param("id")

		var cfg types.GuildConfig
		configured := db.First(&cfg, "guild_id = ?", guildID).Error == nil

		enabled := true
		if rdb != nil {
			if on, found, err := data.GetRunState(c.Request.Context(), rdb, guildID); err == nil && found {
				enabled = on
			}
		}

		resp := gin.H{"guild_id": guildID, "configured": configured, "enabled": enabled}
		if configured {
			resp["active_channel_id"] = cfg.ActiveChannelID
			resp["notification_channel_id"] = cfg.NotificationChannelID
		}
		c.JSON(http.StatusOK, resp)
	})
}
