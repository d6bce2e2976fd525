// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/logging"
	"github.com/watif-social/recommender/internal/social"
)

// Verifier checks username/password pairs against the document store.
type Verifier struct {
	docs  *docstore.Entities
	audit *logging.AuditLogger
}

// NewVerifier creates a credential verifier.
func NewVerifier(docs *docstore.Entities, audit *logging.AuditLogger) *Verifier {
	if audit == nil {
		audit = logging.NewAuditLogger()
	}
	return &Verifier{docs: docs, audit: audit}
}

// Verify looks up the user by username and compares the bcrypt password
// hash. Unknown usernames and wrong passwords both map to the same
// Unauthorized error so the endpoint cannot be used to enumerate accounts.
func (v *Verifier) Verify(ctx context.Context, username, password, ip string) (*social.User, error) {
	user, err := v.docs.UserByUsername(ctx, username)
	if err != nil {
		if fault.KindOf(err) == fault.NotFound {
			// Burn a comparison anyway to keep timing comparable.
			_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000uq2EWJLkkIVyBMcpGbBEz8kLYWPV8P2"), []byte(password))
			v.audit.LogLoginFailure(username, ip, "unknown username")
			return nil, fault.New(fault.Unauthorized, "incorrect username or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		v.audit.LogLoginFailure(username, ip, "password mismatch")
		return nil, fault.New(fault.Unauthorized, "incorrect username or password")
	}

	v.audit.LogLoginSuccess(string(user.ID), user.Username, ip)
	return user, nil
}
