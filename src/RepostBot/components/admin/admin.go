package admin

import (
	"context"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/repostguard/repostbot/src/RepostBot/components/runstate"
	"github.com/repostguard/repostbot/src/RepostBot/types"
	"github.com/repostguard/repostbot/src/discord"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	cmdSetup = "!setup"
	cmdStart = "!startbot"
	cmdStop  = "!stopbot"
)

// Handler recognizes and applies administrator commands. These are the only
// messages processed for an unconfigured guild.
type Handler struct {
	db   *gorm.DB
	gate *runstate.Gate
	msg  discord.Messenger
}

func New(db *gorm.DB, gate *runstate.Gate, msg discord.Messenger) *Handler {
	return &Handler{db: db, gate: gate, msg: msg}
}

// Handle processes m when it is an admin command. It returns true when the
// message was consumed (including permission rejections) so the session
// short-circuits before any image processing.
func (h *Handler) Handle(ctx context.Context, m *discordgo.MessageCreate) bool {
	fields := strings.Fields(m.Content)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case cmdSetup, cmdStart, cmdStop:
	default:
		return false
	}

	isAdmin, err := h.msg.IsAdmin(m.Author.ID, m.ChannelID)
	if err != nil {
		log.Printf("admin: permission check for %s: %v", m.Author.ID, err)
		return true
	}
	if !isAdmin {
		h.reply(m, "You don't have permission to use this command.")
		return true
	}

	switch fields[0] {
	case cmdSetup:
		h.handleSetup(ctx, m, fields[1:])
	case cmdStart:
		h.gate.SetEnabled(ctx, m.GuildID, true)
		h.reply(m, "Repost detection started.")
	case cmdStop:
		h.gate.SetEnabled(ctx, m.GuildID, false)
		h.reply(m, "Repost detection stopped.")
	}
	return true
}

func (h *Handler) handleSetup(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) != 2 || args[0] == "" || args[1] == "" {
		h.reply(m, "Usage: !setup <activeChannelID> <notificationChannelID>")
		return
	}

	cfg := types.GuildConfig{
		GuildID:               m.GuildID,
		ActiveChannelID:       args[0],
		NotificationChannelID: args[1],
	}
	err := h.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active_channel_id", "notification_channel_id", "updated_at"}),
		}).
		Create(&cfg).Error
	if err != nil {
		log.Printf("admin: save config for guild %s: %v", m.GuildID, err)
		h.reply(m, "Failed to save configuration. Please try again.")
		return
	}

	h.reply(m, "Configuration saved. Watching <#"+args[0]+">, announcing in <#"+args[1]+">.")
}

func (h *Handler) reply(m *discordgo.MessageCreate, text string) {
	if err := h.msg.Reply(m.ChannelID, m.ID, text); err != nil {
		log.Printf("admin: reply in channel %s: %v", m.ChannelID, err)
	}
}
