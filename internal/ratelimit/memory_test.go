package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "montoit/pkg/domain"
	dErrors "montoit/pkg/domain-errors"
)

func TestMemoryLimiter_AllowsUpToMax(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	userID := id.NewUserID()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(context.Background(), userID, "kyc"))
	}

	err := l.Allow(context.Background(), userID, "kyc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLimited)
	assert.Equal(t, dErrors.CodeRateLimited, dErrors.CodeOf(err))
}

func TestMemoryLimiter_ChannelsCountedSeparately(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	userID := id.NewUserID()

	require.NoError(t, l.Allow(context.Background(), userID, "kyc"))
	require.NoError(t, l.Allow(context.Background(), userID, "face"))
	assert.ErrorIs(t, l.Allow(context.Background(), userID, "kyc"), ErrLimited)
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	userID := id.NewUserID()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Allow(context.Background(), userID, "kyc"))
	assert.ErrorIs(t, l.Allow(context.Background(), userID, "kyc"), ErrLimited)

	now = now.Add(2 * time.Minute)
	require.NoError(t, l.Allow(context.Background(), userID, "kyc"))
}

func TestMemoryLimiter_UsersIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)

	require.NoError(t, l.Allow(context.Background(), id.NewUserID(), "kyc"))
	require.NoError(t, l.Allow(context.Background(), id.NewUserID(), "kyc"))
}
