package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/roomrelay/internal/blob"
	"github.com/Tyrowin/roomrelay/internal/config"
	"github.com/Tyrowin/roomrelay/internal/log"
	"github.com/Tyrowin/roomrelay/internal/room"
	"github.com/Tyrowin/roomrelay/internal/server"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.L().Fatal().Err(err).Msg("load config")
	}
	log.Init(cfg.Log)

	store, err := blob.New(context.Background(), cfg.Storage)
	if err != nil {
		log.L().Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("init blob store")
	}

	members := room.NewManager(room.NewRegistry())
	hub := server.NewHub(members, store, cfg)
	go hub.Run()

	handlers := server.NewHandlers(hub, store, server.NewOriginPolicy(cfg.AllowedOrigins), cfg.Static.Dir)
	httpServer := server.CreateServer(cfg.Server.Addr(), server.SetupRoutes(handlers, cfg.AllowedOrigins))

	log.L().Info().
		Str("addr", cfg.Server.Addr()).
		Str("storage", cfg.Storage.Driver).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("starting roomrelay")

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.L().Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.L().Info().Str("signal", sig.String()).Msg("shutdown requested")

	if err := server.ShutdownServer(httpServer, cfg.Server.ShutdownTimeout); err != nil {
		log.L().Error().Err(err).Msg("http shutdown")
	}
	if err := hub.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		log.L().Error().Err(err).Msg("hub shutdown")
	}
}
