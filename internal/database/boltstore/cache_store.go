package boltstore

import (
	"fmt"

	"talktome/internal/cache"

	bolt "go.etcd.io/bbolt"
)

var _ cache.KeyValueStore = (*CacheStore)(nil)

// CacheStore is a cache.KeyValueStore persisted in BoltDB.
type CacheStore struct {
	db *bolt.DB
}

// Get returns a copy of the value stored under key.
func (s *CacheStore) Get(key string) ([]byte, bool, error) {
	var value []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketCommentCache)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return nil
		}

		// Values are only valid for the life of the transaction
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return value, value != nil, nil
}

// Set stores value under key.
func (s *CacheStore) Set(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketCommentCache)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketCommentCache)
		}
		return bucket.Put([]byte(key), value)
	})
}

// Remove deletes key. Removing a missing key is not an error.
func (s *CacheStore) Remove(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketCommentCache)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

// Count returns the number of cached entries.
func (s *CacheStore) Count() int {
	var count int

	s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketCommentCache)
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})

	return count
}
