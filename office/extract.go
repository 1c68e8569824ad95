package office

import (
	"path/filepath"
	"strings"

	"github.com/poiesic/lmao/core"
)

// Supported reports whether Extract understands the file's type.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx", ".pptx", ".xlsx":
		return true
	}
	return false
}

// Extract extracts the content of an Office document, choosing the
// extractor by file extension. Other file types yield empty content.
func Extract(filePath, imageDir string) (core.DocumentContent, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".docx":
		return ExtractDOCX(filePath, imageDir)
	case ".pptx":
		return ExtractPPTX(filePath, imageDir)
	case ".xlsx":
		return ExtractXLSX(filePath)
	}
	return core.DocumentContent{}, nil
}
