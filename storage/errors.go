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

import "errors"

// Errors shared by every state store implementation. Callers match them
// with errors.Is; implementations wrap them with the offending key.
var (
	// ErrNotFound is returned when no upload entry or checkpoint exists
	// under the requested key.
	ErrNotFound = errors.New("state record not found")

	// ErrStoreClosed is returned by any operation attempted after the
	// state store was closed.
	ErrStoreClosed = errors.New("state store is closed")

	// ErrCorruptRecord is returned when a stored value cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt state record")

	// ErrTrailingBytes is returned when a stored value decodes cleanly but
	// is followed by bytes that belong to no field.
	ErrTrailingBytes = errors.New("trailing bytes after state record")
)
