package batch

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("outlines")

// Cache stores serialized outline JSON keyed by the SHA-256 of the
// input file, so unchanged inputs skip re-extraction across runs.
type Cache struct {
	db *bolt.DB
}

func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached document for a content hash, nil on miss.
func (c *Cache) Get(sum []byte) []byte {
	var out []byte
	c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cacheBucket).Get(sum); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out
}

func (c *Cache) Put(sum, doc []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(sum, doc)
	})
}

func (c *Cache) Close() error { return c.db.Close() }
