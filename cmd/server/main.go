package main // Entry point package

import (
	"log" // Logging library
	"os"  // reading optional environment variables

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/minesa-dev/linked-roles/internal/broker"     // lazy token refresh
	"github.com/minesa-dev/linked-roles/internal/config"     // environment configuration
	"github.com/minesa-dev/linked-roles/internal/database"   // MySQL pool
	"github.com/minesa-dev/linked-roles/internal/discord"    // Discord API client
	"github.com/minesa-dev/linked-roles/internal/handler"    // HTTP handlers
	"github.com/minesa-dev/linked-roles/internal/ledger"     // resolution ledger
	"github.com/minesa-dev/linked-roles/internal/policy"     // role eligibility providers
	"github.com/minesa-dev/linked-roles/internal/queue"      // resolution event consumer
	"github.com/minesa-dev/linked-roles/internal/repository" // MySQL-backed stores
	"github.com/minesa-dev/linked-roles/internal/router"     // route registration
	queue_publisher "github.com/minesa-dev/linked-roles/internal/service"
	"github.com/minesa-dev/linked-roles/internal/syncer" // metadata synchronizer
)

func main() {
	_ = godotenv.Load() // load .env if present; real env vars win

	cfg := config.Load()                  // required settings; exits if any is missing
	polCfg := config.LoadPolicyConfig()   // anti-abuse policy knobs with defaults
	rlCfg := config.LoadRateLimitConfig() // token bucket settings
	rdb := config.NewRedisClient()        // nil when Redis is unreachable; limiter degrades

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Stores and the Discord client.
	credRepo := repository.NewCredentialRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	dc := discord.NewClient(cfg.DiscordAPIURL, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI)

	// Ledger service with the configured policy.
	led := ledger.New(ledgerRepo, ledger.Policy{
		DailyCap:  polCfg.DailyCap,
		Cooldown:  polCfg.Cooldown,
		MaxGuilds: polCfg.MaxGuilds,
		Day:       polCfg.Location(),
	})

	// Eligibility: hardcoded allow lists from STATIC_ROLES plus the
	// timelapse-derived time_master key.
	roles := policy.Combine(
		policy.ParseStatic(os.Getenv("STATIC_ROLES")),
		policy.NewFromLedger(led),
	)

	syn := &syncer.Synchronizer{
		Credentials:  credRepo,
		Tokens:       broker.New(credRepo, dc),
		Discord:      dc,
		Ledger:       led,
		Roles:        roles,
		PlatformName: cfg.PlatformName,
		Publish:      queue_publisher.PublishMetadataSynced,
	}

	// Consume resolution events from the bot in the background. The consumer
	// reconnects on broker failures and never returns under normal operation.
	go func() {
		if err := queue.StartResolutionConsumer(led, syn); err != nil {
			log.Printf("resolution-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterLink(e, handler.NewLinkHandler(dc, credRepo, syn, cfg.CookieSecret, cfg.StateTTLMin), rlCfg, rdb)
	router.RegisterInternal(e, handler.NewResolutionHandler(led, syn), cfg.APISecret, rlCfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
