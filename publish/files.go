package publish

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poiesic/lmao/batch"
)

// CollectFiles returns every *.json file below base, recursively, sorted
// by path. Run manifests are never collected.
func CollectFiles(base string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() == batch.ManifestName || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
