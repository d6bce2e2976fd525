// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/watif-recommender/config.yaml",
	"/etc/watif-recommender/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			Timeout:     30 * time.Second,
			Mode:        ModeDeploy,
			Environment: "development",
			CORSOrigins: []string{"*"},
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "watif",
			Timeout:  10 * time.Second,
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "",
			Auth:     "",
		},
		Auth: AuthConfig{
			Disabled:           false,
			JWTSecret:          "",
			JWTAlgorithm:       "HS256",
			TokenExpireMinutes: 30,
			RateLimitReqs:      100,
			RateLimitWindow:    time.Minute,
			RateLimitDisabled:  false,
		},
		Embedding: EmbeddingConfig{
			TTLHours: 2,
			ModelID:  "feature-hash-v1",
			Dim:      384,
		},
		Recommend: RecommendConfig{
			DefaultLimit:   10,
			MaxLimit:       100,
			CandidateLimit: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// MONGO_URI -> mongo.uri
	// ACCESS_TOKEN_EXPIRE_MINUTES -> auth.token_expire_minutes
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Resolve the combined NEO4J_AUTH form before validation
	if err := cfg.applyNeo4jAuth(); err != nil {
		return nil, err
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyNeo4jAuth resolves the combined NEO4J_AUTH form into username and
// password. The "user/password" convention matches the official Neo4j
// container image; "none" disables authentication.
func (c *Config) applyNeo4jAuth() error {
	auth := strings.TrimSpace(c.Neo4j.Auth)
	if auth == "" {
		return nil
	}
	if strings.EqualFold(auth, "none") {
		c.Neo4j.Username = ""
		c.Neo4j.Password = ""
		return nil
	}
	user, pass, ok := strings.Cut(auth, "/")
	if !ok || user == "" {
		return fmt.Errorf("NEO4J_AUTH must be in user/password form or 'none', got: %s", auth)
	}
	c.Neo4j.Username = user
	c.Neo4j.Password = pass
	return nil
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. This is necessary because env vars come in as strings, but the
// config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - MONGO_URI -> mongo.uri
//   - NEO4J_PASSWORD -> neo4j.password
//   - ACCESS_TOKEN_EXPIRE_MINUTES -> auth.token_expire_minutes
//   - NO_AUTH -> auth.disabled
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// MongoDB document store
		"mongo_uri":     "mongo.uri",
		"mongo_db":      "mongo.database",
		"mongo_timeout": "mongo.timeout",

		// Neo4j graph store
		"neo4j_uri":      "neo4j.uri",
		"neo4j_user":     "neo4j.username",
		"neo4j_password": "neo4j.password",
		"neo4j_auth":     "neo4j.auth",

		// Authentication
		"no_auth":                     "auth.disabled",
		"jwt_secret_key":              "auth.jwt_secret",
		"jwt_algorithm":               "auth.jwt_algorithm",
		"access_token_expire_minutes": "auth.token_expire_minutes",
		"rate_limit_requests":         "auth.rate_limit_reqs",
		"rate_limit_window":           "auth.rate_limit_window",
		"disable_rate_limit":          "auth.rate_limit_disabled",

		// Embeddings
		"embedding_ttl_hours": "embedding.ttl_hours",
		"embedding_model_id":  "embedding.model_id",
		"embedding_dim":       "embedding.dim",

		// Server (SERVER_* aliases kept for container image compatibility)
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"server_host":  "server.host",
		"server_port":  "server.port",
		"server_mode":  "server.mode",
		"environment":  "server.environment",
		"cors_origins": "server.cors_origins",

		// Recommendation engines
		"recommend_default_limit":   "recommend.default_limit",
		"recommend_max_limit":       "recommend.max_limit",
		"recommend_candidate_limit": "recommend.candidate_limit",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them.
	// This prevents random environment variables from polluting config.
	return ""
}
