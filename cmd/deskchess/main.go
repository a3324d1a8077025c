package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/deskchess/deskchess/internal/archive"
	"github.com/deskchess/deskchess/internal/board"
	"github.com/deskchess/deskchess/internal/cloudeval"
	appcfg "github.com/deskchess/deskchess/internal/config"
	"github.com/deskchess/deskchess/internal/coordinator"
	"github.com/deskchess/deskchess/internal/obslog"
	"github.com/deskchess/deskchess/internal/presets"
	"github.com/deskchess/deskchess/internal/render"
	"github.com/deskchess/deskchess/internal/rules"
	"github.com/deskchess/deskchess/internal/server"
	"github.com/deskchess/deskchess/internal/store"
	"github.com/deskchess/deskchess/internal/uci"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	catalog, err := presets.New(cfg.PresetDir)
	if err != nil {
		log.Fatalf("preset init error: %v", err)
	}
	profile, ok := catalog.Profile(cfg.PresetName)
	if !ok {
		logger.Warn("unknown_preset", zap.String("name", cfg.PresetName), zap.Strings("known", catalog.Names()))
		profile, _ = catalog.Profile(presets.DefaultProfile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := uci.Start(ctx, cfg.EngineBinary, profile.Options())
	if err != nil {
		log.Fatalf("engine start error: %v", err)
	}
	defer session.Close()

	renderer := render.NewRenderer()
	srv := server.New(cfg.ListenAddr, renderer)
	ctrl := board.NewController(rules.NewChessEngine(), srv)

	coordOpts := []coordinator.Option{coordinator.WithProfile(cfg.PresetName)}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		sessionID := cfg.SessionID
		if sessionID == "" {
			sessionID = store.NewSessionID()
		}
		coordOpts = append(coordOpts, coordinator.WithStore(store.NewStore(rdb), sessionID))
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database open error: %v", err)
		}
		defer db.Close()
		repo := archive.NewRepository(db)
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = repo.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			log.Fatalf("database schema error: %v", err)
		}
		coordOpts = append(coordOpts, coordinator.WithArchive(repo))
	}

	if cfg.CloudEvalURL != "" {
		client := cloudeval.NewClient(cfg.CloudEvalURL,
			cloudeval.WithTimeout(time.Duration(cfg.CloudEvalTimeout)*time.Second))
		coordOpts = append(coordOpts, coordinator.WithCloudEval(client, profile.MultiPV))
	}

	coord := coordinator.New(ctrl, session, coordOpts...)
	srv.Attach(ctrl, coord.Events())

	if coord.Restore(ctx) {
		logger.Info("session_restored", zap.String("session_id", coord.SessionID()))
	}

	go coord.Run(ctx)

	logger.Info("deskchess_starting",
		zap.String("engine", cfg.EngineBinary),
		zap.String("preset", cfg.PresetName),
		zap.String("listen", cfg.ListenAddr))

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
