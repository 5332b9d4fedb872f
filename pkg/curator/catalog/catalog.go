// Package catalog persists per-project lifecycle state: where the
// project lives, where it uploads to, and when it last completed a scan
// or an upload. The scanner and planner consult it; the CLI updates it
// after successful runs.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/seqops/curator/pkg/curator/types"
)

// ErrNotFound is returned when a project is not registered.
var ErrNotFound = errors.New("project not found in catalog")

// Record is the persisted state of one project.
type Record struct {
	// Path is the absolute project root on local disk.
	Path string `json:"path"`

	// Destination is where the project's data uploads to.
	Destination types.Destination `json:"destination"`

	// LastScanTime is when the manifest was last fully written.
	LastScanTime time.Time `json:"last_scan_time,omitzero"`

	// LastUploadTime is when an upload run last completed with zero
	// failures. Partial runs do not advance it.
	LastUploadTime time.Time `json:"last_upload_time,omitzero"`
}

// Catalog is the project state store.
type Catalog interface {
	// Get returns the record for a project name, ErrNotFound if absent.
	Get(name string) (Record, error)

	// Put registers or replaces a project record.
	Put(name string, rec Record) error

	// SetScanTime stamps a completed scan on an existing project.
	SetScanTime(name string, at time.Time) error

	// SetUploadTime stamps a fully successful upload on an existing
	// project.
	SetUploadTime(name string, at time.Time) error

	// List returns every registered project name, sorted.
	List() ([]string, error)

	// Delete removes a project record. Deleting an absent project is
	// not an error.
	Delete(name string) error

	Close() error
}

// Store is the Badger-backed Catalog.
type Store struct {
	db *badger.DB
}

var _ Catalog = (*Store)(nil)

// Open opens or creates the catalog database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening catalog at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral catalog. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory catalog: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func makeKey(name string) []byte {
	return []byte("project:" + name)
}

// Get retrieves a project record by name.
func (s *Store) Get(name string) (Record, error) {
	var rec Record

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Put stores a project record.
func (s *Store) Put(name string, rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record for %s: %w", name, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(name), value)
	})
}

// SetScanTime stamps a completed scan.
func (s *Store) SetScanTime(name string, at time.Time) error {
	return s.update(name, func(rec *Record) {
		rec.LastScanTime = at
	})
}

// SetUploadTime stamps a fully successful upload.
func (s *Store) SetUploadTime(name string, at time.Time) error {
	return s.update(name, func(rec *Record) {
		rec.LastUploadTime = at
	})
}

// update applies a mutation to an existing record in one transaction.
func (s *Store) update(name string, mutate func(*Record)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var rec Record
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}

		mutate(&rec)

		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(makeKey(name), value)
	})
}

// List returns registered project names in key order.
func (s *Store) List() ([]string, error) {
	var names []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("project:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			names = append(names, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Delete removes a project record.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(makeKey(name))
	})
}
