// Package ratelimit bounds how often one user can start verification
// attempts. The cap is per user, not per IP: a verification attempt costs
// vendor money, and an attacker with a stolen session should not be able to
// drain the account.
package ratelimit

import (
	"context"

	id "montoit/pkg/domain"
	dErrors "montoit/pkg/domain-errors"
)

// ErrLimited is returned when the user has exhausted their attempt budget.
var ErrLimited = dErrors.New(dErrors.CodeRateLimited, "too many verification attempts")

// Limiter counts verification attempts within a rolling window.
type Limiter interface {
	// Allow consumes one attempt, or returns ErrLimited.
	Allow(ctx context.Context, userID id.UserID, channel string) error
}

// NopLimiter allows everything. Used when no Redis is configured.
type NopLimiter struct{}

func (NopLimiter) Allow(context.Context, id.UserID, string) error { return nil }
