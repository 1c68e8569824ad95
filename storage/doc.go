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

// Package storage defines the state the ingestors keep between runs.
//
// Two record kinds are persisted:
//
//   - UploadCache maps a local batch file path to the OpenAI file ID it was
//     uploaded as, together with a digest of the uploaded bytes. The
//     publisher consults it so a re-run only uploads new or changed files.
//   - CheckpointRepository holds small string values under namespaced keys,
//     for example the newest exported commit of a branch, the newest Slack
//     timestamp of a channel, or a rotated Slack refresh token.
//
// Values are encoded with MUS through core.UploadEntryMUS and
// core.CheckpointMUS. A decode failure surfaces as ErrCorruptRecord.
//
// The badger subpackage is the only implementation:
//
//	backend, err := badger.OpenBackend(filepath.Join(home, ".lmao", "state"), false)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//	uploads := badger.NewUploadCache(backend)
//
// Passing an empty path and true opens an in-memory backend.
package storage
