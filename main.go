package main

import (
	"github.com/winzone/casino-server/broadcast"
	"github.com/winzone/casino-server/config"
	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/games"
	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/monitor"
	"github.com/winzone/casino-server/persistence"
	"github.com/winzone/casino-server/round"
	"github.com/winzone/casino-server/server"
	"github.com/winzone/casino-server/services"
	"github.com/winzone/casino-server/session"
	"github.com/winzone/casino-server/timer"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")
	defer db.Close()

	// Sessions, broadcast and the ledger's balance push
	sessionManager := session.NewManager()
	broadcaster := broadcast.NewSessionBroadcaster(sessionManager)
	bank := ledger.New(db, broadcast.NewBalanceNotifier(broadcaster))

	// Provably fair seed commitment
	provider := fair.NewProvider()

	// Metrics
	mon := monitor.NewMonitor("casino")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Game configs with seeded defaults
	configService, err := services.NewConfigService(db, cfg.Games)
	if err != nil {
		logger.Log.Fatalf("Failed to load game configs: %v", err)
	}
	walletService := services.NewWalletService(db, bank)

	// Live feed of notable settled bets
	feed := broadcast.NewFeed(broadcaster, cfg.Feed.MinStake, cfg.Feed.MinMultiplier)

	// Instant games and mines
	settler := games.NewSettler(bank, provider, db, configService, feed, mon)
	timers := timer.NewTimerManager()
	defer timers.Stop()
	mines := games.NewMinesManager(bank, provider, db, configService, feed, mon, timers, cfg.Mines.GracePeriod())

	// Scheduled rounds
	clock := timer.SystemClock{}
	rounds := round.NewManager(mon)
	for _, resolver := range []round.Resolver{round.NewTripleNumber(), round.NewIPLToss()} {
		rounds.Add(round.NewScheduler(
			resolver, bank, provider, db, configService, broadcaster, feed, mon,
			clock, cfg.Rounds.BettingDuration(), cfg.Rounds.LockedDuration(),
		))
	}
	rounds.StartAll()
	defer rounds.StopAll()

	// Game server
	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, cfg.Server.RPCAddress, server.Deps{
		DB:            db,
		Ledger:        bank,
		Settler:       settler,
		Mines:         mines,
		Rounds:        rounds,
		ConfigService: configService,
		WalletService: walletService,
		Fair:          provider,
		Monitor:       mon,
		Sessions:      sessionManager,
		Broadcaster:   broadcaster,
	})

	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
