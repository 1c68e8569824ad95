package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lmao/storage"
)

// Key namespaces. Every key is prefix + caller supplied string.
const (
	uploadEntryPrefix = "upload:"
	checkpointPrefix  = "chkpt:"
)

func prefixed(prefix, s string) []byte {
	buf := make([]byte, 0, len(prefix)+len(s))
	buf = append(buf, prefix...)
	return append(buf, s...)
}

// makeUploadKey returns upload:<path>.
func makeUploadKey(path string) []byte {
	return prefixed(uploadEntryPrefix, path)
}

// makeCheckpointKey returns chkpt:<key>.
func makeCheckpointKey(key string) []byte {
	return prefixed(checkpointPrefix, key)
}

// readValue decodes the value stored under key. A missing key maps to
// storage.ErrNotFound.
func readValue[T any](tx *badger.Txn, key []byte, decode func([]byte) (*T, error)) (*T, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var out *T
	err = item.Value(func(val []byte) error {
		var decodeErr error
		out, decodeErr = decode(val)
		return decodeErr
	})
	return out, err
}
