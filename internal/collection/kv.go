package collection

import "errors"

// ErrNotFound is returned by a KV when nothing is stored under the key
var ErrNotFound = errors.New("key not found")

// KV is the durable key-value medium the collection is written to.
// Put must replace the whole value in a single write.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(key string) ([]byte, error)

	// Put stores value under key
	Put(key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(key string) error

	// Close releases the medium
	Close() error
}
