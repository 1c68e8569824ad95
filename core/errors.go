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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidCommitRecord indicates a CommitRecord failed validation.
	ErrInvalidCommitRecord = errors.New("invalid commit record")

	// ErrInvalidSlackMessage indicates a SlackMessage failed validation.
	ErrInvalidSlackMessage = errors.New("invalid slack message")

	// ErrInvalidUploadEntry indicates an UploadEntry failed validation.
	ErrInvalidUploadEntry = errors.New("invalid upload entry")

	// ErrInvalidCheckpoint indicates a Checkpoint failed validation.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")

	// ErrEmptyField indicates a required field is empty.
	ErrEmptyField = errors.New("required field is empty")
)
