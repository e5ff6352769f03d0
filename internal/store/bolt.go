package store

import (
	"fmt"
	"log/slog"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "collections"

// BoltStore keeps each collection as one JSON document in a BoltDB file.
// Every Save is a single bolt transaction, so it either commits completely
// or leaves the previous document untouched. BoltDB holds an exclusive lock
// on the file while it is open, which also keeps other processes out.
type BoltStore struct {
	db  *bolt.DB
	log *slog.Logger
}

// OpenBolt opens (or creates) the BoltDB file at path and ensures the
// collections bucket exists.
func OpenBolt(path string, timeout time.Duration, log *slog.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIOFailure, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create bucket: %v", ErrIOFailure, err)
	}

	return &BoltStore{db: db, log: log.With("store", "bolt")}, nil
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Load(name string, dst any) error {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketName)).Get([]byte(name)); v != nil {
			// v is only valid inside the transaction.
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrIOFailure, name, err)
	}

	if data == nil {
		if err := s.Save(name, []struct{}{}); err != nil {
			return err
		}
		s.log.Info("created empty collection", slog.String("name", name))
		data = emptyCollection
	}

	return decodeRecords(data, dst, name)
}

func (s *BoltStore) Save(name string, records any) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIOFailure, name, err)
	}
	return nil
}

func (s *BoltStore) Locked(fn func() error) error {
	return fn()
}
