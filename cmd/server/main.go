// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package main is the entry point for the Marquee ranking server.
//
// Marquee maintains a popularity-ranked view of the cast across a media
// library. The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file and environment (Koanf v2)
//  2. Popularity store: optional BadgerDB cache persisted across restarts
//  3. Lookup pipeline: TMDB client, rate limiter and circuit breaker
//  4. Ranking stabilizer: the owner loop for ordering and enrichment
//  5. WebSocket hub: pushes ranking snapshots to connected clients
//  6. HTTP server: REST API, health and Prometheus metrics
//
// All long-running components run under a suture supervisor tree and the
// process shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dbeaumont-media/marquee/internal/api"
	"github.com/dbeaumont-media/marquee/internal/config"
	"github.com/dbeaumont-media/marquee/internal/enrich"
	"github.com/dbeaumont-media/marquee/internal/library"
	"github.com/dbeaumont-media/marquee/internal/logging"
	"github.com/dbeaumont-media/marquee/internal/models"
	"github.com/dbeaumont-media/marquee/internal/ranking"
	"github.com/dbeaumont-media/marquee/internal/supervisor"
	"github.com/dbeaumont-media/marquee/internal/supervisor/services"
	"github.com/dbeaumont-media/marquee/internal/tmdb"
	"github.com/dbeaumont-media/marquee/internal/websocket"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().Str("version", version).Str("addr", cfg.Server.Addr).Msg("starting marquee")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional persistent popularity store.
	var store *enrich.Store
	if cfg.Cache.PersistPath != "" {
		store, err = enrich.OpenStore(cfg.Cache.PersistPath, cfg.Cache.TTL, cfg.Cache.FailureTTL)
		if err != nil {
			return fmt.Errorf("open popularity store: %w", err)
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				logging.Warn().Err(cerr).Msg("popularity store close failed")
			}
		}()
		logging.Info().Str("path", cfg.Cache.PersistPath).Msg("popularity store opened")
	} else {
		logging.Info().Msg("persistence disabled, popularity cache is in-memory only")
	}

	// Lookup pipeline: TMDB client behind a circuit breaker.
	client := tmdb.NewClient(&cfg.TMDB)
	breaker := tmdb.NewBreakerClient(client)
	lookup := func(ctx context.Context, id models.PersonID) (float64, error) {
		return breaker.PersonPopularity(ctx, id)
	}

	var cacheStore enrich.PopularityStore
	if store != nil {
		cacheStore = store
	}
	cache := enrich.NewCache(cfg.Cache.BatchSize, cacheStore)

	lib := library.New()
	stab := ranking.NewStabilizer(lib, cache, lookup, ranking.Config{
		Debounce:   cfg.Ranking.Debounce,
		WindowSize: cfg.Ranking.WindowSize,
	})
	lib.SetNotifier(stab)

	hub := websocket.NewHub()
	stab.AddListener(hub.BroadcastSnapshot)

	handler := api.NewHandler(lib, stab, hub, cfg.Server.CORSOrigins)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(&cfg.Server, handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	if store != nil {
		gcInterval := cfg.Cache.GCInterval
		tree.AddDataService(services.NewRunnerService("store-gc", func(ctx context.Context) error {
			return store.RunGC(ctx, gcInterval)
		}))
	}
	tree.AddCoreService(services.NewRunnerService("ranking-stabilizer", stab.Serve))
	tree.AddCoreService(services.NewRunnerService("websocket-hub", hub.RunWithContext))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Dur("timeout", treeCfg.ShutdownTimeout).Msg("service failed to stop")
	}

	logging.Info().Msg("server stopped")
	return nil
}
