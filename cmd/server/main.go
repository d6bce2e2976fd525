// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package main is the entry point for the Watif recommendation server.
//
// The server reads the social documents from MongoDB, queries their graph
// projection in Neo4j and serves ranked user, post and thread
// recommendations over HTTP.
//
// # Application Architecture
//
// Startup proceeds in order:
//
//  1. Configuration: environment variables and optional config file (Koanf v2)
//  2. Stores: MongoDB document store and Neo4j graph store, both pinged
//  3. Optional projection: --sync rebuilds the graph before serving
//  4. Engines: JA (graph Jaccard), MC (weighted counts), EM (embedding cosine)
//  5. Authentication: JWT credential exchange, or NO_AUTH for development
//  6. HTTP server: chi router with /recommend, /health, /token, /me, /metrics
//
// # Flags
//
// Flags override the corresponding configuration values:
//
//	--host         bind address
//	--port         listen port
//	--debug        run in debug mode (verbose logging, /health reports "debug")
//	--maintenance  answer every API request with 503 while staying up
//	--sync         run the graph projection (with erase) before serving
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the listener stops
// accepting connections and in-flight requests get 10 seconds to finish.
// The process exits 0 on clean shutdown and 1 on any startup or serve error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/watif-social/recommender/internal/api"
	"github.com/watif-social/recommender/internal/auth"
	"github.com/watif-social/recommender/internal/config"
	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/embedding"
	"github.com/watif-social/recommender/internal/encoder"
	"github.com/watif-social/recommender/internal/graphstore"
	"github.com/watif-social/recommender/internal/logging"
	"github.com/watif-social/recommender/internal/projector"
	"github.com/watif-social/recommender/internal/recommend"
)

// shutdownGrace bounds how long in-flight requests may run after a signal.
const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

//nolint:gocyclo // Sequential startup steps.
func run() error {
	host := flag.String("host", "", "bind address (overrides HTTP_HOST)")
	port := flag.Int("port", 0, "listen port (overrides HTTP_PORT)")
	debug := flag.Bool("debug", false, "run in debug mode")
	maintenance := flag.Bool("maintenance", false, "run in maintenance mode")
	syncFirst := flag.Bool("sync", false, "rebuild the graph projection before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Config{Level: "info", Format: "json"})
		return fmt.Errorf("load configuration: %w", err)
	}

	// Flags win over environment and file configuration.
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	switch {
	case *maintenance:
		cfg.Server.Mode = config.ModeMaintenance
	case *debug:
		cfg.Server.Mode = config.ModeDebug
		cfg.Logging.Level = "debug"
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("mode", cfg.Server.Mode).
		Str("mongo_db", cfg.Mongo.Database).
		Bool("auth_disabled", cfg.Auth.Disabled).
		Msg("Starting Watif recommender")
	if cfg.Auth.Disabled {
		logging.Warn().Msg("Authentication is DISABLED (NO_AUTH=true) - development use only")
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
	defer cancelConnect()

	mongoStore, disconnectMongo, err := docstore.Connect(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := disconnectMongo(ctx); err != nil {
			logging.Error().Err(err).Msg("Error disconnecting MongoDB")
		}
	}()
	logging.Info().Msg("Connected to MongoDB")

	graph, closeNeo4j, err := graphstore.Connect(connectCtx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password)
	if err != nil {
		return fmt.Errorf("connect neo4j: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := closeNeo4j(ctx); err != nil {
			logging.Error().Err(err).Msg("Error closing Neo4j driver")
		}
	}()
	logging.Info().Msg("Connected to Neo4j")

	docs := docstore.NewEntities(mongoStore)

	if *syncFirst {
		logging.Info().Msg("Running graph projection before serving (--sync)")
		report, err := projector.New(docs, graph).Run(context.Background(), projector.Options{Erase: true})
		if err != nil {
			return fmt.Errorf("graph projection: %w", err)
		}
		logging.Info().
			Int64("nodes", report.NodeCount).
			Int64("edges", report.EdgeCount).
			Dur("duration", report.Duration).
			Msg("Graph projection complete")
	}

	enc := encoder.New(cfg.Embedding.ModelID, cfg.Embedding.Dim)
	builder, err := embedding.New(docs, enc, cfg.Embedding.TTL(), embedding.DefaultWeights())
	if err != nil {
		return fmt.Errorf("embedding builder: %w", err)
	}

	engines := recommend.NewRegistry(
		recommend.NewJaccard(graph, cfg.Recommend.CandidateLimit),
		recommend.NewWeightedCount(graph),
		recommend.NewCosine(builder, docs),
	)
	ranker := recommend.NewRanker(cfg.Recommend.DefaultLimit, cfg.Recommend.MaxLimit)

	var tokens *auth.Manager
	if !cfg.Auth.Disabled {
		tokens, err = auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm, cfg.Auth.TokenTTL())
		if err != nil {
			return fmt.Errorf("jwt manager: %w", err)
		}
	}
	verifier := auth.NewVerifier(docs, logging.NewAuditLogger())

	var loginLimiter *auth.RateLimiter
	if !cfg.Auth.RateLimitDisabled {
		loginLimiter = auth.NewRateLimiter(cfg.Auth.RateLimitReqs, cfg.Auth.RateLimitWindow)
		defer loginLimiter.Stop()
	} else {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler := api.NewHandler(engines, ranker, docs, verifier, tokens, cfg.Server.Mode)
	router := api.NewRouter(handler, api.NewAuthMiddleware(tokens, cfg.Auth.Disabled), loginLimiter, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logging.Info().Msg("Server stopped gracefully")
	return nil
}
