package storage

import (
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketScans  = "scans"
	bucketByTgt  = "scans_by_target"
	boltOpenWait = 1 * time.Second
)

// Store wraps a bbolt database holding scan history records.
type Store struct {
	db *bbolt.DB
}

// NewStore opens (or creates) the database at path and ensures the
// buckets exist.
func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: boltOpenWait})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketScans)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(bucketByTgt))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
