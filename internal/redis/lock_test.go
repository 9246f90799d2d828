package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) Locker {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisBookingLocker(client, 5*time.Second)
}

func TestWithBookingLock_RunsCriticalSection(t *testing.T) {
	locker := newTestLocker(t)

	ran := false
	err := locker.WithBookingLock(context.Background(), uuid.New(), time.Now(), func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	require.True(t, ran)
}

func TestWithBookingLock_ContendedSameDoctorDay(t *testing.T) {
	locker := newTestLocker(t)

	doctorID := uuid.New()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	err := locker.WithBookingLock(context.Background(), doctorID, day, func(ctx context.Context) error {
		// Second acquisition for the same doctor-day must fail while we hold the lock.
		inner := locker.WithBookingLock(ctx, doctorID, day, func(ctx context.Context) error {
			t.Fatal("critical section ran while lock was held")
			return nil
		})
		require.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestWithBookingLock_DifferentDaysDoNotContend(t *testing.T) {
	locker := newTestLocker(t)

	doctorID := uuid.New()
	day1 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)

	err := locker.WithBookingLock(context.Background(), doctorID, day1, func(ctx context.Context) error {
		return locker.WithBookingLock(ctx, doctorID, day2, func(ctx context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)
}

func TestWithBookingLock_ReleasedAfterReturn(t *testing.T) {
	locker := newTestLocker(t)

	doctorID := uuid.New()
	day := time.Now()

	err := locker.WithBookingLock(context.Background(), doctorID, day, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	err = locker.WithBookingLock(context.Background(), doctorID, day, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}
