package surge

import (
	"errors"
	"fmt"
)

// ErrLockWaitExpired is returned by GetLocked when the rebuild lock could
// not be taken within the configured wait budget. It marks contention, not
// a store failure.
var ErrLockWaitExpired = errors.New("surge: lock wait expired")

// StoreError wraps a shared-store failure so callers can tell
// infrastructure faults apart from ordinary misses and from loader errors.
type StoreError struct {
	Op  string // "get", "set", "del"
	Key string // storage key
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("surge: store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err originated in the shared store rather
// than in a loader or codec.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
