// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package main is the standalone graph projection tool.
//
// syncgraph mirrors the MongoDB social documents into the Neo4j graph the
// recommendation engines query. The projection is idempotent (MERGE
// semantics), so it can run repeatedly against a live graph; --erase wipes
// the graph first for a clean rebuild.
//
// Flags:
//
//	--erase    detach-delete every node before projecting
//	--timeout  overall run deadline (default 10m)
//
// Exit code 0 on success, 1 when any projection step fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/watif-social/recommender/internal/config"
	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/graphstore"
	"github.com/watif-social/recommender/internal/logging"
	"github.com/watif-social/recommender/internal/projector"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Projection failed")
		os.Exit(1)
	}
}

func run() error {
	erase := flag.Bool("erase", false, "wipe the graph before projecting")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Config{Level: "info", Format: "json"})
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mongoStore, disconnectMongo, err := docstore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		if err := disconnectMongo(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Error disconnecting MongoDB")
		}
	}()

	graph, closeNeo4j, err := graphstore.Connect(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password)
	if err != nil {
		return fmt.Errorf("connect neo4j: %w", err)
	}
	defer func() {
		if err := closeNeo4j(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Error closing Neo4j driver")
		}
	}()

	logging.Info().Bool("erase", *erase).Dur("timeout", *timeout).Msg("Starting graph projection")

	report, err := projector.New(docstore.NewEntities(mongoStore), graph).Run(ctx, projector.Options{Erase: *erase})
	if err != nil {
		return err
	}

	logging.Info().
		Int64("nodes", report.NodeCount).
		Int64("edges", report.EdgeCount).
		Dur("duration", report.Duration).
		Msg("Graph projection complete")
	for _, step := range report.Steps {
		logging.Info().
			Str("step", step.Name).
			Int("nodes", step.Nodes).
			Int("edges", step.Edges).
			Dur("duration", step.Duration).
			Msg("Step complete")
	}
	return nil
}
