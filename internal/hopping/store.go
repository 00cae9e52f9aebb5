package hopping

import "errors"

// ErrNotFound is returned by a Store when the key has no value.
var ErrNotFound = errors.New("hopping: key not found")

// Store is the client's local key/value storage.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
