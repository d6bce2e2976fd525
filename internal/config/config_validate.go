// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateMongo(); err != nil {
		return err
	}

	if err := c.validateNeo4j(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	if err := c.validateEmbedding(); err != nil {
		return err
	}

	if err := c.validateRecommend(); err != nil {
		return err
	}

	return c.validateLogging()
}

// Server limit constants
const (
	minServerTimeout = time.Second
	maxServerTimeout = 10 * time.Minute
)

// validateServer validates HTTP server configuration.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout < minServerTimeout || c.Server.Timeout > maxServerTimeout {
		return fmt.Errorf("HTTP_TIMEOUT must be between %v and %v", minServerTimeout, maxServerTimeout)
	}
	switch strings.ToLower(c.Server.Mode) {
	case ModeDeploy, ModeDebug, ModeMaintenance:
	default:
		return fmt.Errorf("SERVER_MODE must be deploy, debug or maintenance, got: %s", c.Server.Mode)
	}
	return nil
}

// validateMongo validates MongoDB configuration.
func (c *Config) validateMongo() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if err := validateMongoURI(c.Mongo.URI); err != nil {
		return fmt.Errorf("MONGO_URI is invalid: %w", err)
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("MONGO_DB is required")
	}
	if c.Mongo.Timeout <= 0 {
		return fmt.Errorf("MONGO_TIMEOUT must be positive")
	}
	return nil
}

// validateNeo4j validates Neo4j configuration.
func (c *Config) validateNeo4j() error {
	if c.Neo4j.URI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if err := validateNeo4jURI(c.Neo4j.URI); err != nil {
		return fmt.Errorf("NEO4J_URI is invalid: %w", err)
	}
	return nil
}

// validateAuth validates authentication configuration.
func (c *Config) validateAuth() error {
	if c.Auth.Disabled {
		// NO_AUTH bypasses token checks entirely, never allow it in production.
		if c.IsProduction() {
			return fmt.Errorf("NO_AUTH=true is not allowed when ENVIRONMENT=production. " +
				"Set a JWT_SECRET_KEY or use ENVIRONMENT=development for testing purposes")
		}
		return c.validateRateLimits()
	}

	if err := c.validateJWTSecret(); err != nil {
		return err
	}
	if err := c.validateJWTAlgorithm(); err != nil {
		return err
	}
	if err := c.validateTokenExpiry(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// validateJWTSecret validates the JWT signing secret.
func (c *Config) validateJWTSecret() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required unless NO_AUTH=true")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Auth.JWTSecret) {
		return fmt.Errorf("JWT_SECRET_KEY contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// validateJWTAlgorithm validates the JWT signing algorithm.
func (c *Config) validateJWTAlgorithm() error {
	if c.Auth.JWTAlgorithm != "HS256" {
		return fmt.Errorf("JWT_ALGORITHM must be HS256, got: %s", c.Auth.JWTAlgorithm)
	}
	return nil
}

// Token expiry constants
const (
	minTokenExpireMinutes = 1
	maxTokenExpireMinutes = 43200 // 30 days
)

// validateTokenExpiry validates the access token lifetime.
func (c *Config) validateTokenExpiry() error {
	if c.Auth.TokenExpireMinutes < minTokenExpireMinutes || c.Auth.TokenExpireMinutes > maxTokenExpireMinutes {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be between %d and %d",
			minTokenExpireMinutes, maxTokenExpireMinutes)
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Auth.RateLimitDisabled {
		return nil
	}

	if c.Auth.RateLimitReqs < minRateLimitRequests || c.Auth.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d",
			minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Auth.RateLimitWindow < minRateLimitWindow || c.Auth.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v",
			minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// Embedding limit constants
const (
	minEmbeddingDim = 8
	maxEmbeddingDim = 4096
)

// validateEmbedding validates embedding configuration.
func (c *Config) validateEmbedding() error {
	if c.Embedding.TTLHours <= 0 {
		return fmt.Errorf("EMBEDDING_TTL_HOURS must be positive")
	}
	if c.Embedding.Dim < minEmbeddingDim || c.Embedding.Dim > maxEmbeddingDim {
		return fmt.Errorf("EMBEDDING_DIM must be between %d and %d", minEmbeddingDim, maxEmbeddingDim)
	}
	if c.Embedding.ModelID == "" {
		return fmt.Errorf("EMBEDDING_MODEL_ID is required")
	}
	return nil
}

// validateRecommend validates recommendation engine limits.
func (c *Config) validateRecommend() error {
	if c.Recommend.MaxLimit < 1 || c.Recommend.MaxLimit > 1000 {
		return fmt.Errorf("RECOMMEND_MAX_LIMIT must be between 1 and 1000")
	}
	if c.Recommend.DefaultLimit < 1 || c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("RECOMMEND_DEFAULT_LIMIT must be between 1 and RECOMMEND_MAX_LIMIT (%d)",
			c.Recommend.MaxLimit)
	}
	if c.Recommend.CandidateLimit < 1 || c.Recommend.CandidateLimit > 1000 {
		return fmt.Errorf("RECOMMEND_CANDIDATE_LIMIT must be between 1 and 1000")
	}
	return nil
}

// validLogLevels defines the allowed log levels.
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
}

// validateLogging validates logging configuration.
func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
// Production mode is determined by the ENVIRONMENT environment variable.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// placeholderPatterns lists substrings that indicate an unset secret.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"YOUR_PASSWORD",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value looks like an unreplaced placeholder.
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
