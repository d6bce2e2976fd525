// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package auth provides the token endpoint's credential verification, JWT
// issuance and validation, the bearer-token middleware and a per-IP rate
// limiter guarding the login path.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/watif-social/recommender/internal/fault"
)

// Claims are the JWT claims issued by the token endpoint. Subject carries
// the username.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager creates and validates access tokens. HMAC-SHA256 only: the
// algorithm is fixed at construction and validation rejects anything else,
// which closes the algorithm-confusion hole.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a token manager. The configured algorithm must be
// HS256 and the secret non-empty.
func NewManager(secret, algorithm string, ttl time.Duration) (*Manager, error) {
	if !strings.EqualFold(algorithm, "HS256") {
		return nil, fault.Errorf(fault.InvalidParam, "unsupported JWT algorithm %q, only HS256 is supported", algorithm)
	}
	if secret == "" {
		return nil, fault.New(fault.InvalidParam, "JWT_SECRET_KEY is required")
	}
	return &Manager{secret: []byte(secret), ttl: ttl}, nil
}

// GenerateToken signs a token for an authenticated user.
func (m *Manager) GenerateToken(username, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fault.Wrap(fault.Unknown, "sign token", err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm and time claims, returning the
// parsed claims. Every failure maps to Unauthorized.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fault.Errorf(fault.Unauthorized, "unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fault.Wrap(fault.Unauthorized, "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fault.New(fault.Unauthorized, "invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fault.New(fault.Unauthorized, "token has no subject")
	}
	return claims, nil
}
