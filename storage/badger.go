// Package storage keeps encrypted record blobs off the ledger. Blobs are
// content addressed: the locator a record is registered with is derived from
// the ciphertext, so a fetched blob can be checked against its locator.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// LocatorPrefix marks locators issued by this store
const LocatorPrefix = "blob:"

var (
	// ErrNotFound is returned for a locator with no stored blob
	ErrNotFound = errors.New("storage: blob not found")
	// ErrCorrupt is returned when a stored blob no longer matches its locator
	ErrCorrupt = errors.New("storage: blob does not match its locator")
	// ErrInvalidLocator is returned for locators this store did not issue
	ErrInvalidLocator = errors.New("storage: invalid locator")
)

// Blobs stores ciphertext by content locator
type Blobs interface {
	Put(ciphertext []byte) (string, error)
	Get(locator string) ([]byte, error)
	Has(locator string) (bool, error)
	Close() error
}

// Config configures a BadgerStore
type Config struct {
	Path     string
	InMemory bool
	Logger   *logrus.Logger
}

// BadgerStore is a Blobs backed by BadgerDB
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Logger
}

// OpenBadgerStore opens the blob store described by cfg
func OpenBadgerStore(cfg Config) (*BadgerStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening blob store at %q: %w", cfg.Path, err)
	}
	return &BadgerStore{db: db, log: cfg.Logger}, nil
}

// Locator returns the locator a ciphertext is stored under
func Locator(ciphertext []byte) string {
	sum := sha256.Sum256(ciphertext)
	return LocatorPrefix + hex.EncodeToString(sum[:])
}

// Put stores ciphertext and returns its locator. Storing the same bytes twice
// is a no-op.
func (s *BadgerStore) Put(ciphertext []byte) (string, error) {
	locator := Locator(ciphertext)
	key := []byte(locator)

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, ciphertext)
	})
	if err != nil {
		return "", fmt.Errorf("error writing blob %s: %w", locator, err)
	}

	s.log.WithFields(logrus.Fields{"locator": locator, "bytes": len(ciphertext)}).Debug("blob stored")
	return locator, nil
}

// Get returns the ciphertext stored under locator after checking it still
// hashes to the locator
func (s *BadgerStore) Get(locator string) ([]byte, error) {
	if !strings.HasPrefix(locator, LocatorPrefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}

	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(locator))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading blob %s: %w", locator, err)
	}

	if Locator(blob) != locator {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, locator)
	}
	return blob, nil
}

// Has reports whether a blob is stored under locator
func (s *BadgerStore) Has(locator string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(locator))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the underlying database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
