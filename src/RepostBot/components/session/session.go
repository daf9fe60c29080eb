package session

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/repostguard/repostbot/src/RepostBot/components/admin"
	"github.com/repostguard/repostbot/src/RepostBot/components/fingerprint"
	"github.com/repostguard/repostbot/src/RepostBot/components/ledger"
	"github.com/repostguard/repostbot/src/RepostBot/components/penalty"
	"github.com/repostguard/repostbot/src/RepostBot/components/runstate"
	"github.com/repostguard/repostbot/src/RepostBot/config"
	"github.com/repostguard/repostbot/src/RepostBot/types"
	"github.com/repostguard/repostbot/src/discord"
	"gorm.io/gorm"
)

// Hasher is what the session needs from the fingerprint service.
type Hasher interface {
	Compute(ctx context.Context, url string) (string, error)
}

// Session orchestrates one inbound message end to end: gate and config
// checks, admin commands, image extraction, fingerprint, claim, penalty.
type Session struct {
	db     *gorm.DB
	gate   *runstate.Gate
	led    *ledger.Ledger
	hasher Hasher
	pen    *penalty.Controller
	adm    *admin.Handler
	msg    discord.Messenger
	cfg    config.Config
	selfID string
}

func New(db *gorm.DB, gate *runstate.Gate, led *ledger.Ledger, hasher Hasher,
	pen *penalty.Controller, adm *admin.Handler, msg discord.Messenger,
	cfg config.Config, selfID string) *Session {
	return &Session{
		db:     db,
		gate:   gate,
		led:    led,
		hasher: hasher,
		pen:    pen,
		adm:    adm,
		msg:    msg,
		cfg:    cfg,
		selfID: selfID,
	}
}

// HandleMessage processes one MessageCreate event. Admin commands are
// handled before the run-state gate so a stopped bot can still be started.
func (s *Session) HandleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.selfID || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		return
	}

	if s.adm.Handle(ctx, m) {
		return
	}

	guildCfg, err := s.guildConfig(ctx, m.GuildID)
	if err != nil {
		log.Printf("session: load config for guild %s: %v", m.GuildID, err)
		return
	}
	if guildCfg == nil {
		return
	}

	if !s.gate.IsEnabled(ctx, m.GuildID) {
		return
	}
	if m.ChannelID != guildCfg.ActiveChannelID {
		return
	}

	for _, url := range extractImageURLs(m.Message) {
		// One image failing must not abort the rest of the message.
		s.processImage(ctx, m, guildCfg, url)
	}
}

// HandleMessageDelete removes the fingerprint records whose provenance is
// the deleted message, so a resubmission of the same image counts as new.
func (s *Session) HandleMessageDelete(ctx context.Context, d *discordgo.MessageDelete) {
	if d.GuildID == "" {
		return
	}
	if err := s.led.RemoveByMessage(ctx, d.ID, d.GuildID); err != nil {
		log.Printf("session: cleanup for deleted message %s: %v", d.ID, err)
	}
}

func (s *Session) processImage(ctx context.Context, m *discordgo.MessageCreate,
	guildCfg *types.GuildConfig, url string) {

	fp, err := s.hasher.Compute(ctx, url)
	if err != nil {
		if errors.Is(err, fingerprint.ErrUnhashable) {
			log.Printf("session: unhashable image %s in guild %s: %v", url, m.GuildID, err)
			if s.cfg.UnhashablePolicy == config.UnhashableReject {
				if rerr := s.msg.Reply(m.ChannelID, m.ID, "Could not verify that image; it was not checked for reposts."); rerr != nil {
					log.Printf("session: unhashable reply: %v", rerr)
				}
			}
			return
		}
		log.Printf("session: fingerprint %s: %v", url, err)
		return
	}

	result, err := s.led.Claim(ctx, fp, m.GuildID, ledger.Provenance{
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		SourceURL: url,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrClaimRace) {
			log.Printf("session: claim race on %s in guild %s, skipping without penalty", fp, m.GuildID)
			return
		}
		log.Printf("session: claim %s in guild %s: %v", fp, m.GuildID, err)
		return
	}

	if result.Outcome != ledger.AlreadyExists {
		return
	}

	s.pen.Punish(ctx, penalty.Violation{
		GuildID:         m.GuildID,
		UserID:          m.Author.ID,
		ChannelID:       m.ChannelID,
		MessageID:       m.ID,
		NotifyChannelID: guildCfg.NotificationChannelID,
		SourceURL:       url,
		Original:        result.Record,
	})
}

func (s *Session) guildConfig(ctx context.Context, guildID string) (*types.GuildConfig, error) {
	var cfg types.GuildConfig
	err := s.db.WithContext(ctx).First(&cfg, "guild_id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// extractImageURLs returns candidate image references in extraction order:
// attachments declaring an image content type first, then embedded images
// and thumbnails. No de-duplication within a message; the ledger enforces
// uniqueness.
func extractImageURLs(m *discordgo.Message) []string {
	var urls []string
	for _, att := range m.Attachments {
		if strings.HasPrefix(att.ContentType, "image/") {
			urls = append(urls, att.URL)
		}
	}
	for _, embed := range m.Embeds {
		if embed.Image != nil && embed.Image.URL != "" {
			urls = append(urls, embed.Image.URL)
		}
		if embed.Thumbnail != nil && embed.Thumbnail.URL != "" {
			urls = append(urls, embed.Thumbnail.URL)
		}
	}
	return urls
}
