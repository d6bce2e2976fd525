// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "nil error",
			err:  nil,
			want: Unknown,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: Unknown,
		},
		{
			name: "direct kind",
			err:  New(NotFound, "user u1 not found"),
			want: NotFound,
		},
		{
			name: "wrapped kind survives fmt.Errorf",
			err:  fmt.Errorf("loading user: %w", New(StoreFault, "connection reset")),
			want: StoreFault,
		},
		{
			name: "deeply wrapped",
			err:  fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", Errorf(InvalidWeights, "sum %f", 1.2))),
			want: InvalidWeights,
		},
		{
			name: "bare context cancellation",
			err:  context.Canceled,
			want: Cancelled,
		},
		{
			name: "bare deadline",
			err:  context.DeadlineExceeded,
			want: Timeout,
		},
		{
			name: "wrapped deadline",
			err:  fmt.Errorf("query: %w", context.DeadlineExceeded),
			want: Timeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New(NotFound, "post p9 not found"),
			want: "post p9 not found",
		},
		{
			name: "message and cause",
			err:  Wrap(StoreFault, "mongo get", errors.New("dial tcp: refused")),
			want: "mongo get: dial tcp: refused",
		},
		{
			name: "cause only",
			err:  Wrap(StoreFault, "", errors.New("dial tcp: refused")),
			want: "dial tcp: refused",
		},
		{
			name: "neither",
			err:  New(ShapeMismatch, ""),
			want: "shape_mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(ProjectorStepFailed, "step users", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !Is(err, ProjectorStepFailed) {
		t.Error("Is should match the error's kind")
	}
	if Is(err, NotFound) {
		t.Error("Is should not match a different kind")
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{NotFound, "not_found"},
		{InvalidWeights, "invalid_weights"},
		{InvalidParam, "invalid_param"},
		{ShapeMismatch, "shape_mismatch"},
		{Unauthorized, "unauthorized"},
		{Cancelled, "cancelled"},
		{Timeout, "timeout"},
		{StoreFault, "store_fault"},
		{ProjectorStepFailed, "projector_step_failed"},
		{Unknown, "unknown"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestFromContext(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if got := FromContext(ctx).Kind(); got != Cancelled {
			t.Errorf("FromContext kind = %v, want Cancelled", got)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		<-ctx.Done()
		if got := FromContext(ctx).Kind(); got != Timeout {
			t.Errorf("FromContext kind = %v, want Timeout", got)
		}
	})
}
