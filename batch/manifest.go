package batch

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ManifestName is the file name of the run manifest inside an output directory.
// The extension keeps manifests out of "*.json" globs that collect batch files.
const ManifestName = "manifest.lmao"

// Manifest describes the batch files an ingestion run produced in one directory.
type Manifest struct {
	RunID      string     `json:"run_id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	MaxRecords int        `json:"max_records"`
	Files      []FileInfo `json:"files"`
}

// NewManifest starts a manifest for a run of source.
func NewManifest(source string, maxRecords int) *Manifest {
	return &Manifest{
		RunID:      uuid.NewString(),
		Source:     source,
		StartedAt:  time.Now().UTC(),
		MaxRecords: maxRecords,
		Files:      []FileInfo{},
	}
}

// Add records written batch files.
func (m *Manifest) Add(files ...FileInfo) {
	m.Files = append(m.Files, files...)
}

// Merge keeps the files of a previous run that this run did not rewrite.
// Previous files come first.
func (m *Manifest) Merge(prev *Manifest) {
	if prev == nil {
		return
	}
	current := make(map[string]bool, len(m.Files))
	for _, f := range m.Files {
		current[f.Name] = true
	}
	merged := make([]FileInfo, 0, len(prev.Files)+len(m.Files))
	for _, f := range prev.Files {
		if !current[f.Name] {
			merged = append(merged, f)
		}
	}
	m.Files = append(merged, m.Files...)
}

// Records returns the total number of records across all files.
func (m *Manifest) Records() int {
	total := 0
	for _, f := range m.Files {
		total += f.Records
	}
	return total
}

// WriteManifest stamps FinishedAt and writes m into dir.
func WriteManifest(dir string, m *Manifest) error {
	m.FinishedAt = time.Now().UTC()
	return WriteJSON(filepath.Join(dir, ManifestName), m)
}

// ReadManifest loads the manifest in dir.
func ReadManifest(dir string) (*Manifest, error) {
	var m Manifest
	if err := ReadJSON(filepath.Join(dir, ManifestName), &m); err != nil {
		return nil, err
	}
	return &m, nil
}
