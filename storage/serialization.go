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

package storage

import (
	"fmt"

	"github.com/poiesic/lmao/core"
)

// codec is the subset of a MUS serializer the state store relies on.
type codec[T any] interface {
	Marshal(v T, bs []byte) int
	Unmarshal(bs []byte) (T, int, error)
	Size(v T) int
}

func encode[T any](c codec[T], v T) []byte {
	buf := make([]byte, c.Size(v))
	c.Marshal(v, buf)
	return buf
}

// decode requires data to hold exactly one value.
func decode[T any](c codec[T], kind string, data []byte) (*T, error) {
	v, n, err := c.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, kind, err)
	}
	if extra := len(data) - n; extra > 0 {
		return nil, fmt.Errorf("%w: %s has %d extra", ErrTrailingBytes, kind, extra)
	}
	return &v, nil
}

// MarshalUploadEntry encodes an upload cache entry.
func MarshalUploadEntry(entry *core.UploadEntry) []byte {
	return encode[core.UploadEntry](core.UploadEntryMUS, *entry)
}

// UnmarshalUploadEntry decodes an upload cache entry written by MarshalUploadEntry.
func UnmarshalUploadEntry(data []byte) (*core.UploadEntry, error) {
	return decode[core.UploadEntry](core.UploadEntryMUS, "upload entry", data)
}

// MarshalCheckpoint encodes a checkpoint.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	return encode[core.Checkpoint](core.CheckpointMUS, *checkpoint)
}

// UnmarshalCheckpoint decodes a checkpoint written by MarshalCheckpoint.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	return decode[core.Checkpoint](core.CheckpointMUS, "checkpoint", data)
}
