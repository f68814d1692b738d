// Package lock provides short-lived mutual exclusion leases keyed by string.
// Journey entrances are serialized solely through this contract: two resumes
// for the same entrance never run concurrently.
package lock

import "context"

// Lock is a non-blocking lease. Acquire returns false when the key is
// already held; that is a deduplication signal, not an error. Leases expire
// on their own so a crashed holder cannot permanently wedge a key.
type Lock interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
