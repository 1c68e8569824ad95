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

package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/storage"
)

// CheckpointRepository stores ingestion checkpoints under the chkpt: prefix.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository returns a checkpoint repository backed by backend.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{backend: backend}
}

// SaveCheckpoint writes checkpoint, stamping UpdatedAt with the current time.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if err := core.ValidateCheckpoint(checkpoint); err != nil {
		return err
	}
	checkpoint.UpdatedAt = time.Now().UTC()
	value := storage.MarshalCheckpoint(checkpoint)
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeCheckpointKey(checkpoint.Key), value)
	})
}

// LoadCheckpoint returns the checkpoint saved under key, or nil, nil when
// nothing was saved yet. Ingestors treat a nil checkpoint as "start from the
// beginning".
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, key string) (*core.Checkpoint, error) {
	var checkpoint *core.Checkpoint
	err := r.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		checkpoint, err = readValue(tx, makeCheckpointKey(key), storage.UnmarshalCheckpoint)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return checkpoint, err
}

// DeleteCheckpoint forgets key. Deleting a missing key is not an error.
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, key string) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Delete(makeCheckpointKey(key))
	})
}
