package badger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/lmao/storage"
)

// Backend owns the badger handle shared by the upload cache and the
// checkpoint repository.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogBridge routes badger's printf style logging into slog. Badger reports
// startup, replay and compaction at info level, which is noise for a CLI, so
// info is demoted to debug.
type slogBridge struct {
	logger *slog.Logger
}

var _ badger.Logger = slogBridge{}

func (s slogBridge) log(level slog.Level, format string, args []any) {
	s.logger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (s slogBridge) Errorf(format string, args ...any)   { s.log(slog.LevelError, format, args) }
func (s slogBridge) Warningf(format string, args ...any) { s.log(slog.LevelWarn, format, args) }
func (s slogBridge) Infof(format string, args ...any)    { s.log(slog.LevelDebug, format, args) }
func (s slogBridge) Debugf(format string, args ...any)   { s.log(slog.LevelDebug, format, args) }

// OpenBackend opens or creates the state store in dir. With inMemory set,
// dir is ignored and nothing touches the disk.
func OpenBackend(dir string, inMemory bool) (*Backend, error) {
	logger := slog.Default().With("component", "state-store")

	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if err := ensureDir(dir); err != nil {
		return nil, err
	}
	opts = opts.
		WithLogger(slogBridge{logger: logger}).
		WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state store %q: %w", dir, err)
	}
	logger.Debug("state store opened", "dir", dir, "in_memory", inMemory)
	return &Backend{db: db, logger: logger}, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0o755)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("state store path %s is not a directory", dir)
	}
	return nil
}

// Close releases the database. Closing twice is allowed.
func (b *Backend) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// IsClosed reports whether Close was called.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// Update runs fn in a read-write transaction and commits it when fn
// succeeds.
func (b *Backend) Update(ctx context.Context, fn func(tx *badger.Txn) error) error {
	return b.run(ctx, true, func(tx *badger.Txn) error {
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// View runs fn in a read-only transaction.
func (b *Backend) View(ctx context.Context, fn func(tx *badger.Txn) error) error {
	return b.run(ctx, false, fn)
}

func (b *Backend) run(ctx context.Context, write bool, fn func(tx *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.db.IsClosed() {
		return storage.ErrStoreClosed
	}
	tx := b.db.NewTransaction(write)
	defer tx.Discard()
	return fn(tx)
}
