package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/repostguard/repostbot/src/RepostApi/webserver"
	"github.com/repostguard/repostbot/src/RepostBot/bot"
	"github.com/repostguard/repostbot/src/RepostBot/config"
	"github.com/repostguard/repostbot/src/RepostBot/data"
)

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = data.MustRedis(cfg.RedisURL)
	}

	b, err := bot.New(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	if cfg.StatusAddr != "" {
		srv := webserver.New(db, rdb)
		go func() {
			if err := srv.Run(cfg.StatusAddr); err != nil {
				log.Printf("status API stopped: %v", err)
			}
		}()
		log.Printf("Status API listening on %s", cfg.StatusAddr)
	}

	log.Println("RepostBot is running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	b.Stop()
	if rdb != nil {
		rdb.Close()
	}
	log.Println("RepostBot stopped gracefully")
}
