package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jortega-dev/comandero/internal/catalog"
	"github.com/jortega-dev/comandero/internal/config"
	"github.com/jortega-dev/comandero/internal/controller"
	"github.com/jortega-dev/comandero/internal/db"
	"github.com/jortega-dev/comandero/internal/floorplan"
	"github.com/jortega-dev/comandero/internal/order"
	"github.com/jortega-dev/comandero/internal/table"
	"github.com/jortega-dev/comandero/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "comandero").Logger()

	log.Info().Msg("Comandero starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	if err := dbConn.Migrate(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	registry := table.NewRegistry(dbConn.Pool)

	if cfg.FloorPlanPath != "" {
		plan, err := floorplan.Load(cfg.FloorPlanPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load floor plan")
		}
		if err := plan.Seed(context.Background(), registry); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed table registry")
		}
	}

	store := order.NewStore(dbConn.Pool)
	products := catalog.NewCatalog(dbConn.Pool)
	svc := order.NewService(store, registry, products)
	ctrl := controller.New(svc, controller.LogEvents{})

	router := transport.NewRouter(registry, ctrl, svc)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
