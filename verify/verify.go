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

package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/core"
	"github.com/poiesic/lmao/publish"
)

// ErrNotDirectory is returned when the verified path is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Kind classifies a problem found in an output directory.
type Kind string

const (
	KindUnreadable    Kind = "unreadable"
	KindNotArray      Kind = "not_array"
	KindRoundTrip     Kind = "round_trip"
	KindSchema        Kind = "schema"
	KindOversized     Kind = "oversized"
	KindMissingFile   Kind = "missing_file"
	KindCountMismatch Kind = "count_mismatch"
	KindBadManifest   Kind = "bad_manifest"
	KindInvalid       Kind = "invalid_record"
)

// Problem is one failed check.
type Problem struct {
	Path    string `json:"path"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// FileReport describes one batch file.
type FileReport struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

// Report is the outcome of Verify.
type Report struct {
	Dir       string       `json:"dir"`
	Files     []FileReport `json:"files"`
	Manifests int          `json:"manifests"`
	Records   int          `json:"records"`
	Problems  []Problem    `json:"problems"`
}

// OK reports whether no problem was found.
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

func (r *Report) addProblem(path string, kind Kind, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Path: path, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Options tunes Verify.
type Options struct {
	// MaxRecords, when positive, caps the records of every batch file.
	// Otherwise the cap recorded in each directory's manifest applies.
	MaxRecords int
}

// Verify checks every batch file below dir. Each file must hold a JSON
// array that survives a decode, encode, decode round trip and, when a
// manifest names its source, a round trip through the record type of that
// source. Batch sizes are checked against the cap and manifest record
// counts against the files.
func Verify(dir string, opts Options) (*Report, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	logger := slog.Default().With("component", "verify")
	report := &Report{Dir: dir, Files: []FileReport{}, Problems: []Problem{}}

	manifests, err := loadManifests(dir, report)
	if err != nil {
		return nil, err
	}

	paths, err := publish.CollectFiles(dir)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(paths))
	for _, path := range paths {
		manifest := manifests[filepath.Dir(path)]
		records, ok := checkFile(path, manifest, report)
		if !ok {
			continue
		}
		counts[path] = records
		report.Files = append(report.Files, FileReport{Path: path, Records: records})
		report.Records += records

		limit := opts.MaxRecords
		if limit <= 0 && manifest != nil {
			limit = manifest.MaxRecords
		}
		if limit > 0 && records > limit {
			report.addProblem(path, KindOversized, "%d records exceed the maximum of %d", records, limit)
		}
	}

	for manifestDir, manifest := range manifests {
		for _, f := range manifest.Files {
			path := filepath.Join(manifestDir, f.Name)
			actual, ok := counts[path]
			if !ok {
				if _, err := os.Stat(path); err != nil {
					report.addProblem(path, KindMissingFile, "listed in manifest but not found")
				}
				continue
			}
			if actual != f.Records {
				report.addProblem(path, KindCountMismatch, "manifest lists %d records, file has %d", f.Records, actual)
			}
		}
	}

	logger.Info("verification finished", "dir", dir, "files", len(report.Files), "records", report.Records, "problems", len(report.Problems))
	return report, nil
}

func loadManifests(dir string, report *Report) (map[string]*batch.Manifest, error) {
	manifests := make(map[string]*batch.Manifest)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != batch.ManifestName {
			return nil
		}
		manifestDir := filepath.Dir(path)
		m, err := batch.ReadManifest(manifestDir)
		if err != nil {
			report.addProblem(path, KindBadManifest, "%v", err)
			return nil
		}
		manifests[manifestDir] = m
		report.Manifests++
		return nil
	})
	return manifests, err
}

// checkFile runs the per-file checks and returns the record count.
func checkFile(path string, manifest *batch.Manifest, report *Report) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		report.addProblem(path, KindUnreadable, "%v", err)
		return 0, false
	}

	var records []any
	if err := json.Unmarshal(data, &records); err != nil {
		report.addProblem(path, KindNotArray, "%v", err)
		return 0, false
	}
	if records == nil {
		report.addProblem(path, KindNotArray, "null is not an array")
		return 0, false
	}

	if err := roundTrip(records); err != nil {
		report.addProblem(path, KindRoundTrip, "%v", err)
	}

	if manifest != nil {
		checkSchema(path, manifest.Source, data, records, report)
	}
	return len(records), true
}

func roundTrip(records []any) error {
	encoded, err := batch.Encode(records)
	if err != nil {
		return err
	}
	var decoded []any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return err
	}
	if !reflect.DeepEqual(records, decoded) {
		return errors.New("records changed after re-encoding")
	}
	return nil
}

// checkSchema decodes data into the record type of source, checks that
// encoding it again loses nothing and validates every record.
func checkSchema(path, source string, data []byte, records []any, report *Report) {
	switch {
	case strings.HasPrefix(source, "git"):
		checkTyped(path, data, records, report, core.ValidateCommitRecord)
	case source == "slack":
		checkTyped(path, data, records, report, core.ValidateSlackMessage)
	case source == "sharepoint":
		checkTyped[core.OfficeDocument](path, data, records, report, nil)
	}
}

func checkTyped[T any](path string, data []byte, records []any, report *Report, validate func(*T) error) {
	typed, err := typedRoundTrip[T](data, records)
	if err != nil {
		report.addProblem(path, KindSchema, "%v", err)
		return
	}
	if validate == nil {
		return
	}
	for i := range typed {
		if err := validate(&typed[i]); err != nil {
			report.addProblem(path, KindInvalid, "record %d: %v", i, err)
		}
	}
}

func typedRoundTrip[T any](data []byte, records []any) ([]T, error) {
	var typed []T
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	encoded, err := json.Marshal(typed)
	if err != nil {
		return nil, err
	}
	var decoded []any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, err
	}
	for i := range records {
		if !reflect.DeepEqual(records[i], decoded[i]) {
			return nil, fmt.Errorf("record %d does not match its schema", i)
		}
	}
	return typed, nil
}
