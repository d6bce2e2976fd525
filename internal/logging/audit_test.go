// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestAuditLoggerLoginSuccess(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLoggerWithLogger(NewTestLogger(&buf))

	audit.LogLoginSuccess("u1", "johndoe", "10.0.0.1")

	output := buf.String()
	if !strings.Contains(output, `"event":"login_success"`) {
		t.Errorf("expected login_success event: %s", output)
	}
	if !strings.Contains(output, `"status":"success"`) {
		t.Errorf("expected success status: %s", output)
	}
	if !strings.Contains(output, `"username":"jo***"`) {
		t.Errorf("expected sanitized username: %s", output)
	}
	if strings.Contains(output, "johndoe") {
		t.Errorf("raw username leaked into log: %s", output)
	}
}

func TestAuditLoggerLoginFailure(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLoggerWithLogger(NewTestLogger(&buf))

	audit.LogLoginFailure("johndoe", "10.0.0.1", "wrong password for account")

	output := buf.String()
	if !strings.Contains(output, `"event":"login_failed"`) {
		t.Errorf("expected login_failed event: %s", output)
	}
	if !strings.Contains(output, `"status":"failed"`) {
		t.Errorf("expected failed status: %s", output)
	}
	// Error text mentioning "password" must be replaced wholesale.
	if strings.Contains(output, "wrong password") {
		t.Errorf("sensitive error text leaked: %s", output)
	}
	if !strings.Contains(output, "authentication error") {
		t.Errorf("expected generic error text: %s", output)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", ""},
		{"short", "abc123", "***"},
		{"boundary", "123456789012", "***"},
		{"long", "eyJhbGciOiJSUzI1NiJ9", "eyJh...NiJ9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     string
	}{
		{"empty", "", ""},
		{"one char", "a", "***"},
		{"two chars", "ab", "***"},
		{"normal", "johndoe", "jo***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeUsername(tt.username); got != tt.want {
				t.Errorf("SanitizeUsername(%q) = %q, want %q", tt.username, got, tt.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "connection refused", "connection refused"},
		{"password", "invalid password for user", "authentication error"},
		{"token", "Token expired", "authentication error"},
		{"secret", "bad SECRET provided", "authentication error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeError(tt.in); got != tt.want {
				t.Errorf("SanitizeError(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeErrorTruncates(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := SanitizeError(long)
	if len(got) != 203 {
		t.Errorf("expected truncation to 200 chars plus ellipsis, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix: %q", got[190:])
	}
}
