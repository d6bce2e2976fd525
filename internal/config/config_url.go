// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package config

import (
	"fmt"
	"net/url"
)

// validateMongoURI validates that the MongoDB connection string is properly
// formatted. Supports standard and DNS seed list connection formats.
func validateMongoURI(rawURI string) error {
	parsed, err := url.Parse(rawURI)
	if err != nil {
		return fmt.Errorf("failed to parse URI: %w", err)
	}

	if parsed.Scheme != "mongodb" && parsed.Scheme != "mongodb+srv" {
		return fmt.Errorf("scheme must be mongodb or mongodb+srv, got: %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:27017, mongo.example.com)")
	}

	return nil
}

// validNeo4jSchemes lists the URI schemes the Neo4j driver accepts.
var validNeo4jSchemes = map[string]bool{
	"bolt":      true,
	"bolt+s":    true,
	"bolt+ssc":  true,
	"neo4j":     true,
	"neo4j+s":   true,
	"neo4j+ssc": true,
}

// validateNeo4jURI validates that the Neo4j URI is properly formatted.
// Supports bolt and neo4j routing schemes, with or without TLS variants.
func validateNeo4jURI(rawURI string) error {
	parsed, err := url.Parse(rawURI)
	if err != nil {
		return fmt.Errorf("failed to parse URI: %w", err)
	}

	if !validNeo4jSchemes[parsed.Scheme] {
		return fmt.Errorf("scheme must be one of bolt, bolt+s, bolt+ssc, neo4j, neo4j+s, neo4j+ssc, got: %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:7687, graph.example.com:7687)")
	}

	return nil
}
