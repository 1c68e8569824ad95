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

import "fmt"

// ValidateCommitRecord validates a CommitRecord before it is written.
//
// Validation rules:
//   - Repository, Branch and CommitHash must not be empty
//
// Diffs may be empty: root commits have no parent to diff against.
func ValidateCommitRecord(record *CommitRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidCommitRecord)
	}
	if record.Repository == "" {
		return fmt.Errorf("%w: repository: %w", ErrInvalidCommitRecord, ErrEmptyField)
	}
	if record.Branch == "" {
		return fmt.Errorf("%w: branch: %w", ErrInvalidCommitRecord, ErrEmptyField)
	}
	if record.CommitHash == "" {
		return fmt.Errorf("%w: commit_hash: %w", ErrInvalidCommitRecord, ErrEmptyField)
	}
	return nil
}

// ValidateSlackMessage validates a SlackMessage before it is written.
//
// Validation rules:
//   - ChannelID and Timestamp must not be empty
//
// User and Text may be empty for bot and file-only messages.
func ValidateSlackMessage(msg *SlackMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidSlackMessage)
	}
	if msg.ChannelID == "" {
		return fmt.Errorf("%w: channel_id: %w", ErrInvalidSlackMessage, ErrEmptyField)
	}
	if msg.Timestamp == "" {
		return fmt.Errorf("%w: timestamp: %w", ErrInvalidSlackMessage, ErrEmptyField)
	}
	return nil
}

// ValidateUploadEntry validates an UploadEntry before it is cached.
func ValidateUploadEntry(entry *UploadEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidUploadEntry)
	}
	if entry.Path == "" {
		return fmt.Errorf("%w: path: %w", ErrInvalidUploadEntry, ErrEmptyField)
	}
	if entry.FileID == "" {
		return fmt.Errorf("%w: file id: %w", ErrInvalidUploadEntry, ErrEmptyField)
	}
	return nil
}

// ValidateCheckpoint validates a Checkpoint before it is saved.
func ValidateCheckpoint(checkpoint *Checkpoint) error {
	if checkpoint == nil {
		return fmt.Errorf("%w: checkpoint is nil", ErrInvalidCheckpoint)
	}
	if checkpoint.Key == "" {
		return fmt.Errorf("%w: key: %w", ErrInvalidCheckpoint, ErrEmptyField)
	}
	return nil
}
