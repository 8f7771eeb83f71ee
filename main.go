package main

import (
	"github.com/wfunc/matchserver/config"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/persistence"
	"github.com/wfunc/matchserver/room"
	"github.com/wfunc/matchserver/server"
	"github.com/wfunc/matchserver/services"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the match record store. Live room state is never persisted;
	// the store only keeps finished game results.
	var db persistence.Database
	switch cfg.Database.Driver {
	case "gorm":
		db, err = persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	case "sql":
		db, err = persistence.NewPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	case "":
		logger.Log.Info("No database driver configured; match records disabled.")
	default:
		logger.Log.Fatalf("Unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	if db != nil {
		logger.Log.Info("Database connection successful.")
	}

	opts := room.DefaultOptions()
	opts.Pairs = cfg.Game.Pairs
	opts.TurnSeconds = cfg.Game.TurnSeconds
	opts.FlipDelay = cfg.Game.FlipDelay()
	opts.GracePeriod = cfg.Game.ReconnectTimeout()
	opts.StartDelay = cfg.Game.StartDelay()

	// Initialize Game Server
	gameServer := server.NewGameServer(
		cfg.Server.HTTPAddress,
		cfg.Server.RPCAddress,
		cfg.Server.MonitorAddress,
		opts,
		services.NewRecordService(db),
	)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
