// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lmao opens the local state store shared by the ingestors.
package lmao

import (
	"log/slog"

	"github.com/poiesic/lmao/storage"
	"github.com/poiesic/lmao/storage/badger"
)

// Store is the local state shared by the ingestors: the upload cache of
// the publisher and the checkpoints of incremental exports.
type Store struct {
	backend        *badger.Backend
	uploadCache    *badger.UploadCache
	checkpointRepo storage.CheckpointRepository
	logger         *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	inMemory bool
}

// WithInMemory keeps all state in memory. The directory is ignored.
func WithInMemory() StoreOption {
	return func(o *storeOptions) {
		o.inMemory = true
	}
}

func OpenStore(dirPath string, opts ...StoreOption) (*Store, error) {
	options := &storeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(dirPath, options.inMemory)
	if err != nil {
		return nil, err
	}

	return &Store{
		backend:        backend,
		uploadCache:    badger.NewUploadCache(backend),
		checkpointRepo: badger.NewCheckpointRepository(backend),
		logger:         slog.Default().With("component", "store"),
	}, nil
}

func (s *Store) Close() error {
	if err := s.uploadCache.Close(); err != nil {
		s.logger.Error("error closing upload cache", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing state store", "err", err)
		return err
	}
	return nil
}

func (s *Store) UploadCache() storage.UploadCache {
	return s.uploadCache
}

func (s *Store) CheckpointRepository() storage.CheckpointRepository {
	return s.checkpointRepo
}
