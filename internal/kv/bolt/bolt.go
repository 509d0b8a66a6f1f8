// Package bolt persists collections in a single-file bbolt database: one
// bucket, one key per collection. bbolt transactions give the data layer its
// commit-or-fail-together guarantee for multi-collection writes.
package bolt

import (
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"warungku/backend/internal/kv"
)

var bucketName = []byte("collections")

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open data file %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create collections bucket: %w", err)
	}

	return &Store{db: db}, nil
}

type boltTx struct {
	bucket   *bbolt.Bucket
	writable bool
}

func (t *boltTx) Get(collection string) ([]byte, error) {
	blob := t.bucket.Get([]byte(collection))
	if blob == nil {
		return nil, nil
	}
	// bbolt values are only valid for the life of the transaction.
	dup := make([]byte, len(blob))
	copy(dup, blob)
	return dup, nil
}

func (t *boltTx) Put(collection string, data []byte) error {
	if !t.writable {
		return kv.ErrReadOnly
	}
	return t.bucket.Put([]byte(collection), data)
}

func (s *Store) View(fn func(kv.Tx) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&boltTx{bucket: tx.Bucket(bucketName)})
	})
}

func (s *Store) Update(fn func(kv.Tx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltTx{bucket: tx.Bucket(bucketName), writable: true})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
