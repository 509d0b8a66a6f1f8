// Package kv defines the persistence contract for the data layer: a local
// key-value store holding one opaque blob per collection. Reads and writes
// are whole-collection; there are no partial or range operations.
package kv

import "errors"

var ErrReadOnly = errors.New("put inside a read-only transaction")

// Tx is the view of the store inside a transaction closure. Get returns nil
// for a collection that has never been written.
type Tx interface {
	Get(collection string) ([]byte, error)
	Put(collection string, data []byte) error
}

// Store runs closures against the underlying medium. Everything written in
// an Update closure commits together, or not at all when the closure returns
// an error.
type Store interface {
	View(fn func(Tx) error) error
	Update(fn func(Tx) error) error
	Close() error
}
