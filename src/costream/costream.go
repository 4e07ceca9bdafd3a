package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"

	"github.com/viewer-gg/costream/src/costream/approval"
	"github.com/viewer-gg/costream/src/costream/config"
	"github.com/viewer-gg/costream/src/costream/data"
	"github.com/viewer-gg/costream/src/costream/discord"
	"github.com/viewer-gg/costream/src/costream/poller"
	"github.com/viewer-gg/costream/src/costream/twitch"
	"github.com/viewer-gg/costream/src/costream/webserver"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Connect to database first
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "costream:costream@tcp(localhost:3306)/costream"
	}
	db := data.MustMySQL(mysqlDSN)

	store := data.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Load config with database
	cfg := config.Load(db)
	rdb := data.MustRedis(cfg.RedisURL)

	twitchClient := twitch.NewClient(cfg.TwitchClientID, cfg.TwitchClientSecret)

	if cfg.DiscordToken == "" {
		log.Printf("Warning: no discord token configured; role assignment will fail until one is set")
	}
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("discord session: %v", err)
	}
	roleService := discord.NewRoleService(session)
	oauth := discord.NewOAuth(cfg.DiscordClientID, cfg.DiscordClientSecret)

	pollService := poller.NewService(store, twitchClient, rdb)
	approvalWorkflow := approval.NewWorkflow(store, roleService)

	ctx, cancel := context.WithCancel(context.Background())

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.PollInterval),
		gocron.NewTask(func() { pollService.PollAllStreams(ctx) }),
	)
	if err != nil {
		log.Fatalf("schedule poll job: %v", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.SnapshotInterval),
		gocron.NewTask(func() {
			if err := pollService.CollectViewershipSnapshot(ctx); err != nil {
				log.Printf("snapshot: %v", err)
			}
		}),
	)
	if err != nil {
		log.Fatalf("schedule snapshot job: %v", err)
	}
	sched.Start()

	router := webserver.New(cfg, webserver.Deps{
		Poller:   pollService,
		Approver: approvalWorkflow,
		Roles:    roleService,
		OAuth:    oauth,
		Store:    store,
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("costream service listening on %s (poll every %s, snapshot every %s)",
		cfg.Port, cfg.PollInterval, cfg.SnapshotInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	_ = sched.Shutdown()
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
