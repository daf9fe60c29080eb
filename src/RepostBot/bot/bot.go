package bot

import (
	"context"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/repostguard/repostbot/src/RepostBot/components/admin"
	"github.com/repostguard/repostbot/src/RepostBot/components/fingerprint"
	"github.com/repostguard/repostbot/src/RepostBot/components/ledger"
	"github.com/repostguard/repostbot/src/RepostBot/components/penalty"
	"github.com/repostguard/repostbot/src/RepostBot/components/runstate"
	"github.com/repostguard/repostbot/src/RepostBot/components/session"
	"github.com/repostguard/repostbot/src/RepostBot/config"
	"github.com/repostguard/repostbot/src/discord"
	"gorm.io/gorm"
)

type Bot struct {
	session *discordgo.Session
	db      *gorm.DB
	rdb     *redis.Client
	cfg     config.Config

	gate      *runstate.Gate
	ledger    *ledger.Ledger
	penalties *penalty.Controller
	moderator *session.Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bot{
		session: dg,
		db:      db,
		rdb:     rdb,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}

	messenger := discord.NewSession(dg)
	b.gate = runstate.New(rdb)
	b.ledger = ledger.New(db)
	b.penalties = penalty.New(db, messenger, rdb, cfg)

	adminHandler := admin.New(db, b.gate, messenger)
	// Self ID is not known until login; handleMessageCreate filters the
	// bot's own messages against session state instead.
	b.moderator = session.New(db, b.gate, b.ledger, fingerprint.New(),
		b.penalties, adminHandler, messenger, cfg, "")

	dg.AddHandler(b.handleReady)
	dg.AddHandler(b.handleMessageCreate)
	dg.AddHandler(b.handleMessageDelete)

	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuilds

	return b, nil
}

func (b *Bot) Start() error {
	return b.session.Open()
}

func (b *Bot) Stop() {
	b.cancel()
	b.wg.Wait()
	b.session.Close()
}

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("Discord bot logged in as %s", event.User.Username)

	// Grant sweeper: startup reconcile then periodic expiry.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.penalties.Run(b.ctx)
	}()
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
		return
	}
	b.moderator.HandleMessage(b.ctx, m)
}

func (b *Bot) handleMessageDelete(s *discordgo.Session, d *discordgo.MessageDelete) {
	b.moderator.HandleMessageDelete(b.ctx, d)
}
