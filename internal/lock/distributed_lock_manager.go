package lock

import "context"

// DistributedLockManager hands out cluster-wide locks keyed by the ids in constants.Locks.
type DistributedLockManager interface {
	Acquire(ctx context.Context, lockID int) error
	// TryAcquire returns false without waiting when another session holds the lock.
	TryAcquire(ctx context.Context, lockID int) (bool, error)
	Release(ctx context.Context, lockID int) error
}
