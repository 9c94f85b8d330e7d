// Package keylock provides mutual exclusion scoped to a string key.
//
// Local serializes holders within one process. Redis extends the guarantee
// across replicas using SET NX PX with a random token and a compare-and-delete
// release, so a holder never releases a lock that expired and was taken over.
package keylock

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrTimeout is returned when a lock could not be acquired before the
// caller's wait budget ran out.
var ErrTimeout = errors.New("lock wait timeout")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker acquires exclusive locks by key. Lock blocks until the lock is held,
// ctx is done, or the implementation's wait budget is exhausted.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}
