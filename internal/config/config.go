// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package config holds all application configuration loaded from environment
// variables and optional config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Stores:
//     - Mongo: MongoDB document store holding users, posts, threads, interests,
//       keys and roles (the source of truth)
//     - Neo4j: Neo4j graph store the projector mirrors documents into and the
//       recommendation engines query
//
//  2. API & Security:
//     - Server: HTTP server configuration (host, port, timeout, CORS)
//     - Auth: JWT issuance and verification, rate limiting
//
//  3. Recommendations:
//     - Embedding: Profile vector construction (TTL, model id, dimensions)
//     - Recommend: Result and candidate limits for the engines
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Mongo.URI, cfg.Neo4j.URI, etc. are now populated
//
// Validation:
// Load() validates all required fields and returns an error if required
// environment variables are missing (MONGO_URI, NEO4J_URI, JWT_SECRET_KEY
// unless NO_AUTH=true) or values are malformed.
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Mongo     MongoConfig     `koanf:"mongo"`
	Neo4j     Neo4jConfig     `koanf:"neo4j"`
	Auth      AuthConfig      `koanf:"auth"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// Server modes. Deploy is normal operation; debug turns on verbose
// responses and logging; maintenance keeps the process up but answers every
// non-health request with 503.
const (
	ModeDeploy      = "deploy"
	ModeDebug       = "debug"
	ModeMaintenance = "maintenance"
)

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST / SERVER_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT / SERVER_PORT: Listen port (default: 8000)
//   - HTTP_TIMEOUT: Per-request timeout (default: 30s)
//   - SERVER_MODE: deploy, debug or maintenance (default: deploy)
//   - ENVIRONMENT: development or production (default: development)
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Mode        string        `koanf:"mode"`
	Environment string        `koanf:"environment"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// MongoConfig holds MongoDB document store settings. MongoDB is the source
// of truth for the social data the recommender reads.
//
// Environment Variables:
//   - MONGO_URI: Connection string (e.g., mongodb://localhost:27017)
//   - MONGO_DB: Database name (default: watif)
//   - MONGO_TIMEOUT: Connect and ping timeout (default: 10s)
type MongoConfig struct {
	URI      string        `koanf:"uri"`
	Database string        `koanf:"database"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Neo4jConfig holds Neo4j graph store settings. The graph is a projection
// of the MongoDB documents, refreshed by the projector.
//
// Environment Variables:
//   - NEO4J_URI: Bolt URI (e.g., bolt://localhost:7687)
//   - NEO4J_USER: Username (default: neo4j)
//   - NEO4J_PASSWORD: Password
//   - NEO4J_AUTH: Combined "user/password" form, or "none" to disable
//     authentication. Overrides NEO4J_USER and NEO4J_PASSWORD when set.
type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Auth     string `koanf:"auth"`
}

// AuthConfig holds JWT and rate limiting settings.
//
// Environment Variables:
//   - NO_AUTH: Disable authentication entirely (default: false).
//     Intended for local development and integration tests only.
//   - JWT_SECRET_KEY: HMAC signing secret (required unless NO_AUTH=true)
//   - JWT_ALGORITHM: Signing algorithm, only HS256 is supported (default: HS256)
//   - ACCESS_TOKEN_EXPIRE_MINUTES: Token lifetime in minutes (default: 30)
//   - RATE_LIMIT_REQUESTS: Requests allowed per window (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - DISABLE_RATE_LIMIT: Disable rate limiting (default: false)
type AuthConfig struct {
	Disabled           bool          `koanf:"disabled"`
	JWTSecret          string        `koanf:"jwt_secret"`
	JWTAlgorithm       string        `koanf:"jwt_algorithm"`
	TokenExpireMinutes int           `koanf:"token_expire_minutes"`
	RateLimitReqs      int           `koanf:"rate_limit_reqs"`
	RateLimitWindow    time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled  bool          `koanf:"rate_limit_disabled"`
}

// TokenTTL returns the access token lifetime as a duration.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenExpireMinutes) * time.Minute
}

// EmbeddingConfig holds profile vector construction settings.
//
// Environment Variables:
//   - EMBEDDING_TTL_HOURS: Cache freshness window in hours (default: 2)
//   - EMBEDDING_MODEL_ID: Encoder model identifier; changing it invalidates
//     every cached vector (default: feature-hash-v1)
//   - EMBEDDING_DIM: Vector width (default: 384)
type EmbeddingConfig struct {
	TTLHours float64 `koanf:"ttl_hours"`
	ModelID  string  `koanf:"model_id"`
	Dim      int     `koanf:"dim"`
}

// TTL returns the cache freshness window as a duration.
func (e EmbeddingConfig) TTL() time.Duration {
	return time.Duration(e.TTLHours * float64(time.Hour))
}

// RecommendConfig holds shared limits for the recommendation engines.
//
// Environment Variables:
//   - RECOMMEND_DEFAULT_LIMIT: Results returned when the request omits a
//     limit (default: 10)
//   - RECOMMEND_MAX_LIMIT: Upper bound on the per-request limit (default: 100)
//   - RECOMMEND_CANDIDATE_LIMIT: Graph candidates considered per request
//     by the Jaccard user engine (default: 20)
type RecommendConfig struct {
	DefaultLimit   int `koanf:"default_limit"`
	MaxLimit       int `koanf:"max_limit"`
	CandidateLimit int `koanf:"candidate_limit"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file and line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
