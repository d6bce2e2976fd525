// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package validation

import (
	"strings"
	"testing"

	"github.com/watif-social/recommender/internal/fault"
)

type loginForm struct {
	Username string `validate:"required,max=8"`
	Password string `validate:"required"`
}

func TestStructPasses(t *testing.T) {
	if err := Struct(&loginForm{Username: "alice", Password: "pw"}); err != nil {
		t.Errorf("valid struct rejected: %v", err)
	}
}

func TestStructFailures(t *testing.T) {
	tests := []struct {
		name    string
		form    loginForm
		wantMsg string
	}{
		{
			name:    "missing username",
			form:    loginForm{Password: "pw"},
			wantMsg: "username is required",
		},
		{
			name:    "username too long",
			form:    loginForm{Username: "verylongname", Password: "pw"},
			wantMsg: "at most 8 characters",
		},
		{
			name:    "both missing",
			form:    loginForm{},
			wantMsg: "password is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.form)
			if fault.KindOf(err) != fault.InvalidParam {
				t.Fatalf("error = %v, want InvalidParam", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("message %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}
