// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// AuthEvent represents a security-relevant authentication event.
type AuthEvent struct {
	// Event is the type of event (e.g., "login_success", "token_issued").
	Event string
	// UserID is the user's identifier (if known).
	UserID string
	// Username is the user's username (if known).
	Username string
	// IPAddress is the client's IP address.
	IPAddress string
	// Success indicates if the operation was successful.
	Success bool
	// Error is the error message if the operation failed.
	Error string
}

// AuditLogger provides secure logging for authentication events.
// It sanitizes sensitive data before logging.
type AuditLogger struct {
	logger zerolog.Logger
}

// NewAuditLogger creates a new audit logger on the global logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{
		logger: With().Str("component", "auth").Logger(),
	}
}

// NewAuditLoggerWithLogger creates an audit logger on a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuditLoggerWithLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// LogEvent logs an authentication event with automatic sanitization.
func (l *AuditLogger) LogEvent(event *AuthEvent) {
	e := l.logger.Info().Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.Username != "" {
		e = e.Str("username", SanitizeUsername(event.Username))
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}

	e.Msg("")
}

// LogLoginSuccess logs a successful credential exchange.
func (l *AuditLogger) LogLoginSuccess(userID, username, ip string) {
	l.LogEvent(&AuthEvent{
		Event:     "login_success",
		UserID:    userID,
		Username:  username,
		IPAddress: ip,
		Success:   true,
	})
}

// LogLoginFailure logs a failed credential exchange.
func (l *AuditLogger) LogLoginFailure(username, ip, reason string) {
	l.LogEvent(&AuthEvent{
		Event:     "login_failed",
		Username:  username,
		IPAddress: ip,
		Success:   false,
		Error:     reason,
	})
}

// LogTokenIssued logs a token issuance.
func (l *AuditLogger) LogTokenIssued(userID, username string) {
	l.LogEvent(&AuthEvent{
		Event:    "token_issued",
		UserID:   userID,
		Username: username,
		Success:  true,
	})
}

// LogTokenRejected logs a rejected bearer token.
func (l *AuditLogger) LogTokenRejected(ip, reason string) {
	l.LogEvent(&AuthEvent{
		Event:     "token_rejected",
		IPAddress: ip,
		Success:   false,
		Error:     reason,
	})
}

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUsername masks a username, keeping first 2 characters.
// Example: "johndoe" -> "jo***"
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"token",
		"key",
		"bearer",
		"authorization",
		"cookie",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}

	return truncateString(err, 200)
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
