package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/storage"
)

// UploadCache implements storage.UploadCache for BadgerDB.
type UploadCache struct {
	backend *Backend
}

var _ storage.UploadCache = (*UploadCache)(nil)

// NewUploadCache creates an upload cache stored in backend.
func NewUploadCache(backend *Backend) *UploadCache {
	return &UploadCache{backend: backend}
}

// Get returns the cached entry for path, or storage.ErrNotFound.
func (c *UploadCache) Get(ctx context.Context, path string) (*core.UploadEntry, error) {
	var entry *core.UploadEntry
	err := c.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		entry, err = readValue(tx, makeUploadKey(path), storage.UnmarshalUploadEntry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Has reports whether path was already uploaded.
func (c *UploadCache) Has(ctx context.Context, path string) (bool, error) {
	found := false
	err := c.backend.View(ctx, func(tx *badger.Txn) error {
		_, err := tx.Get(makeUploadKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Put stores entry, replacing any previous entry for the same path.
func (c *UploadCache) Put(ctx context.Context, entry *core.UploadEntry) error {
	if err := core.ValidateUploadEntry(entry); err != nil {
		return err
	}
	if entry.UploadedAt.IsZero() {
		entry.UploadedAt = time.Now().UTC()
	}
	return c.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeUploadKey(entry.Path), storage.MarshalUploadEntry(entry))
	})
}

// Delete removes the entry for path.
func (c *UploadCache) Delete(ctx context.Context, path string) error {
	return c.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeUploadKey(path)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, path)
			}
			return err
		}
		return tx.Delete(key)
	})
}

// List returns every cached entry in key (path) order.
func (c *UploadCache) List(ctx context.Context) ([]*core.UploadEntry, error) {
	var entries []*core.UploadEntry
	err := c.backend.View(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(uploadEntryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				entry, err := storage.UnmarshalUploadEntry(val)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// Close is a no-op; the backend owns the database handle.
func (c *UploadCache) Close() error {
	return nil
}
