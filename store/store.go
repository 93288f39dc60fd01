// Package store persists runs, datasets, users and sessions in BadgerDB.
//
// Values are JSON documents under prefixed keys:
//
//	run/<id>        simulation run summary and records
//	dataset/<id>    uploaded dataset metadata
//	user/<name>     registered dashboard user
//	session/<token> login session, expires through the entry TTL
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned by Create when the key is already live.
	ErrExists = errors.New("already exists")
)

// createRetries bounds Create's retries on transaction conflicts.
const createRetries = 5

// Key prefixes.
const (
	PrefixRun     = "run/"
	PrefixDataset = "dataset/"
	PrefixUser    = "user/"
	PrefixSession = "session/"
)

func RunKey(id string) string { return PrefixRun + id }
func DatasetKey(id string) string { return PrefixDataset + id }
func UserKey(name string) string { return PrefixUser + name }
func SessionKey(token string) string { return PrefixSession + token }

// Config selects where the database lives.
type Config struct {
	Path       string `yaml:"path" split_words:"true"`
	InMemory   bool   `yaml:"in_memory" split_words:"true"`
	SyncWrites bool   `yaml:"sync_writes" split_words:"true"`
	Verbose    bool   `yaml:"verbose" split_words:"true"` // route badger's own logs to logrus
}

// Store is a thin JSON layer over a badger database. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required unless in_memory is set")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Verbose {
		opts = opts.WithLogger(logrus.StandardLogger())
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: opening badger: %w", err)
	}
	logrus.Infof("store: opened (in_memory=%v path=%q)", cfg.InMemory, cfg.Path)
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway database.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores v as JSON under key. A positive ttl makes the entry expire.
func (s *Store) Put(key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Create stores v under key only if the key is absent. The existence check
// and the write share one transaction, so of concurrent creators exactly one
// succeeds and the rest get ErrExists.
func (s *Store) Create(key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", key, err)
	}
	for attempt := 0; ; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return fmt.Errorf("%s: %w", key, ErrExists)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			e := badger.NewEntry([]byte(key), data)
			if ttl > 0 {
				e = e.WithTTL(ttl)
			}
			return txn.SetEntry(e)
		})
		// a conflicting commit wrote the key first; rerun to see it
		if errors.Is(err, badger.ErrConflict) && attempt < createRetries {
			continue
		}
		return err
	}
}

// Get decodes the JSON stored under key into v.
func (s *Store) Get(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// ExpiresAt returns when key expires, or the zero time if it has no TTL.
func (s *Store) ExpiresAt(key string) (time.Time, error) {
	var at time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if exp := item.ExpiresAt(); exp > 0 {
			at = time.Unix(int64(exp), 0)
		}
		return nil
	})
	return at, err
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Each calls fn for every live entry whose key starts with prefix, in key
// order. The key passed to fn has the prefix stripped. fn must not retain
// val.
func (s *Store) Each(prefix string, fn func(key string, val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), prefix)
			if err := item.Value(func(val []byte) error { return fn(key, val) }); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys lists the keys under prefix with the prefix stripped.
func (s *Store) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.Each(prefix, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}
