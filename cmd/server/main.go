package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/blchelle/capstone/internal/config"
	"github.com/blchelle/capstone/internal/httpapi"
	"github.com/blchelle/capstone/internal/hub"
	"github.com/blchelle/capstone/internal/store"
)

func main() {
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.Env == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var st store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.NewPostgres(cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("connecting to postgres", zap.Error(err))
		}
	} else {
		log.Warn("no DATABASE_URL, using in-memory store")
		st = store.NewMemory()
	}

	ctx := context.Background()
	h := hub.NewHub(ctx, cfg.Rules(), log)

	handler := httpapi.SetupRoutes(h, st, log)

	log.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
