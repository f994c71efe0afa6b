package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketContainers = []byte("containers")
)

const (
	// DBFile is the ledger file name inside the state directory
	DBFile = "vassal-bridge.db"

	// lockTimeout bounds the wait for the file lock held by another bridge
	lockTimeout = 2 * time.Second
)

// BoltStore implements Store using BoltDB. Every bridge process of a
// supervisor shares one file, so the database is opened per operation and
// the file lock is held only for the duration of a transaction.
type BoltStore struct {
	path string
}

// NewBoltStore creates a BoltDB-backed ledger in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &BoltStore{path: filepath.Join(dataDir, DBFile)}

	// Create buckets
	err := s.update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketContainers); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketContainers, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: lockTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	db, err := s.open(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (s *BoltStore) view(fn func(tx *bolt.Tx) error) error {
	db, err := s.open(true)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

// Put creates or replaces the record of a workload
func (s *BoltStore) Put(record *Record) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContainers)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.Name), data)
	})
}

// Get returns the record of a workload
func (s *BoltStore) Get(name string) (*Record, error) {
	var record Record
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContainers)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns all records ordered by workload name
func (s *BoltStore) List() ([]*Record, error) {
	var records []*Record
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContainers)
		return b.ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

// Delete removes the record of a workload. Deleting a missing record is not an error.
func (s *BoltStore) Delete(name string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContainers)
		return b.Delete([]byte(name))
	})
}
