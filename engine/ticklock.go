package engine

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"github.com/bsm/redislock"
)

// ErrTickAlreadyRunning is returned when another instance holds the generation lock.
var ErrTickAlreadyRunning = errors.New("subscription order generation is already running")

const (
	tickLockKey = "subscription:generate"
	tickLockTTL = 10 * time.Minute
)

// WithTickLock runs fn under a redis lock so only one instance runs the daily tick
// at a time. Without a lock client (single-instance dev setups) fn runs directly.
func WithTickLock(ctx context.Context, fn func(ctx context.Context) error) error {
	locker := config.GetRedisLock()
	if locker == nil {
		return fn(ctx)
	}

	lock, err := locker.Obtain(ctx, tickLockKey, tickLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrTickAlreadyRunning
	}
	if err != nil {
		return err
	}
	defer lock.Release(context.Background())

	return fn(ctx)
}
