package port

import "context"

// UpdateFunc receives the current value of a key (found is false when the key
// does not exist) and returns the value to store. Returning an error aborts
// the update and leaves the key unchanged.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// LedgerStore is the durable key-value store behind the payment ledger.
// Values are opaque encoded payloads; the ledger owns their format.
type LedgerStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Update applies fn to key atomically with respect to every other Update
	// of the same key, including ones from other processes sharing the store.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
