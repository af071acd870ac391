package main

import (
	"os"

	"github.com/bubasket/marketplace-backend/internal/config"
	"github.com/bubasket/marketplace-backend/internal/db"
	"github.com/bubasket/marketplace-backend/internal/model"
	"github.com/bubasket/marketplace-backend/internal/obs"
	"github.com/bubasket/marketplace-backend/internal/server"
	"github.com/joho/godotenv"
)

var (
	gitSHA    = "dev"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	srv, err := server.New(nil, cfg, logger, gitSHA, buildTime)
	if err != nil {
		logger.Error("server init failed", "error", err)
		os.Exit(1)
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", "addr", addr, "git_sha", gitSHA)
		errCh <- srv.Start(addr)
	}()

	// Cloud Run wants the port open fast; the DB catches up in the
	// background and repositories report ErrDBNotReady until then.
	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			logger.Error("db connect failed", "error", err)
			return
		}
		if err := conn.AutoMigrate(
			&model.Listing{},
			&model.Profile{},
			&model.Conversation{},
			&model.Message{},
		); err != nil {
			logger.Error("auto migrate failed", "error", err)
			return
		}
		srv.SetDB(conn)
		logger.Info("database ready")
	}()

	if err := <-errCh; err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
