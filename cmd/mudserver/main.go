// Package main provides the game server binary serving the telnet and
// WebSocket frontends.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/k6mud/internal/broadcast"
	"github.com/cory-johannsen/k6mud/internal/config"
	"github.com/cory-johannsen/k6mud/internal/frontend/handlers"
	"github.com/cory-johannsen/k6mud/internal/frontend/telnet"
	"github.com/cory-johannsen/k6mud/internal/frontend/ws"
	"github.com/cory-johannsen/k6mud/internal/game/command"
	"github.com/cory-johannsen/k6mud/internal/game/session"
	"github.com/cory-johannsen/k6mud/internal/game/world"
	"github.com/cory-johannsen/k6mud/internal/observability"
	"github.com/cory-johannsen/k6mud/internal/server"
	"github.com/cory-johannsen/k6mud/internal/storage/memory"
	"github.com/cory-johannsen/k6mud/internal/storage/postgres"
)

const healthCheckTimeout = 2 * time.Second

// profileStore is the session store plus the presence maintenance calls.
type profileStore interface {
	session.ProfileStore
	Connected(ctx context.Context) ([]string, error)
	ResetConnections(ctx context.Context) (int64, error)
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	restore := observability.InstallGlobals(logger)
	defer restore()

	if err := run(cfg, logger, start); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger, start time.Time) error {
	ctx := context.Background()

	graph, err := loadWorld(cfg.World)
	if err != nil {
		return err
	}
	logger.Info("world loaded",
		zap.Int("rooms", graph.RoomCount()),
		zap.Int("default_room", graph.DefaultRoomID()),
	)
	for _, room := range graph.Rooms() {
		logger.Debug("room",
			zap.Int("id", room.ID),
			zap.String("name", room.Name),
			zap.Strings("exits", graph.PrintableExits(room)),
		)
	}

	var healthSrv *server.HealthServer
	if cfg.Health.Enabled {
		healthSrv = server.NewHealthServer(cfg.Health.Addr(), cfg.Health.CheckInterval, logger.Named("health"))
	}
	addCheck := func(name string, check server.Check) {
		if healthSrv != nil {
			healthSrv.AddCheck(name, check)
		}
	}

	store, closeStore, err := openStore(ctx, cfg, logger, addCheck)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Storage.ResetPresenceOnStart {
		n, err := store.ResetConnections(ctx)
		if err != nil {
			return fmt.Errorf("resetting presence: %w", err)
		}
		logger.Info("presence reset", zap.Int64("profiles", n))
	}

	fanout, err := openFanout(ctx, cfg, logger, addCheck)
	if err != nil {
		return err
	}
	defer func() { _ = fanout.Close() }()

	deps := session.Deps{
		World:     graph,
		Profiles:  store,
		Broadcast: fanout,
		Commands:  command.DefaultRegistry(),
		Logger:    logger.Named("session"),
	}
	registry := session.NewRegistry()
	handler, err := handlers.NewGameHandler(deps, fanout, registry)
	if err != nil {
		return err
	}

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
	if healthSrv != nil {
		lifecycle.Add("health", healthSrv)
		lifecycle.OnShutdown(healthSrv.Drain)
	}
	if cfg.Telnet.Enabled {
		lifecycle.Add("telnet", telnet.NewAcceptor(cfg.Telnet, handler, logger))
	}
	if cfg.WebSocket.Enabled {
		lifecycle.Add("websocket", ws.NewAcceptor(cfg.WebSocket, handler, logger))
	}
	switch {
	case cfg.Storage.PresenceSweepInterval == 0:
	case cfg.Broadcast.Backend == config.BroadcastRedis:
		logger.Info("presence sweeper disabled; other nodes may hold live sessions")
	default:
		lifecycle.Add("presence-sweeper", session.NewPresenceSweeper(
			store, registry, cfg.Storage.PresenceSweepInterval, logger.Named("presence")))
	}
	lifecycle.OnShutdown(func() {
		fields := []zap.Field{
			zap.Int("sessions", registry.Count()),
			zap.Int("players", registry.AuthenticatedCount()),
			zap.Strings("usernames", registry.Usernames()),
		}
		if hub, ok := fanout.(*broadcast.LocalHub); ok {
			fields = append(fields, zap.Int("subscribers", hub.SubscriberCount()))
		}
		logger.Info("shutting down", fields...)
	})

	logger.Info("server ready",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("broadcast", cfg.Broadcast.Backend),
		zap.Duration("startup", time.Since(start)),
	)
	return lifecycle.Run(ctx)
}

func loadWorld(cfg config.WorldConfig) (*world.Graph, error) {
	if cfg.File == "" {
		return world.DefaultGraph(), nil
	}
	graph, err := world.LoadGraphFromFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("loading world: %w", err)
	}
	return graph, nil
}

// openStore connects the configured profile store and returns its close func.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger, addCheck func(string, server.Check)) (profileStore, func(), error) {
	if cfg.Storage.Backend == config.StorageMemory {
		logger.Warn("using in-memory profile store; profiles are lost on restart")
		return memory.NewProfileStore(), func() {}, nil
	}

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	addCheck("postgres", func(ctx context.Context) error {
		return pool.Health(ctx, healthCheckTimeout)
	})
	closePool := func() {
		acquired, idle := pool.Stats()
		logger.Info("closing database pool",
			zap.Int32("acquired", acquired),
			zap.Int32("idle", idle),
		)
		pool.Close()
	}
	return postgres.NewProfileRepository(pool.DB()), closePool, nil
}

// openFanout builds the configured broadcast transport.
func openFanout(ctx context.Context, cfg config.Config, logger *zap.Logger, addCheck func(string, server.Check)) (broadcast.Fanout, error) {
	if cfg.Broadcast.Backend != config.BroadcastRedis {
		return broadcast.NewLocalHub(logger.Named("broadcast"), cfg.Broadcast.BufferSize), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	fanout := broadcast.NewRedisFanout(client, cfg.Broadcast.Group, logger.Named("broadcast")).
		WithBufferSize(cfg.Broadcast.BufferSize)
	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := fanout.Ping(pingCtx); err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info("redis connected",
		zap.String("addr", cfg.Redis.Addr),
		zap.String("channel", cfg.Broadcast.Group),
	)
	addCheck("redis", fanout.Ping)
	return fanout, nil
}
