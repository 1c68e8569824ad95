package office

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/poiesic/lmao/core"
)

const docxMainPart = "word/document.xml"

type docxDocument struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

// ExtractDOCX returns the text of the top-level body paragraphs of a Word
// document, joined by newlines, and writes every image the document
// references into imageDir under its original base name.
func ExtractDOCX(filePath, imageDir string) (core.DocumentContent, error) {
	p, err := openPackage(filePath)
	if err != nil {
		return core.DocumentContent{}, err
	}
	defer p.Close()

	var doc docxDocument
	if err := p.decode(docxMainPart, &doc); err != nil {
		return core.DocumentContent{}, err
	}
	text := joinParagraphs(doc.Body.Paragraphs)

	rels, err := p.readRels(docxMainPart)
	if err != nil {
		return core.DocumentContent{}, err
	}

	var images []string
	for _, rel := range rels {
		if rel.TargetMode == "External" || !strings.Contains(rel.Target, "image") {
			continue
		}
		data, err := p.read(resolveTarget(docxMainPart, rel.Target))
		if err != nil {
			return core.DocumentContent{}, err
		}
		if err := os.MkdirAll(imageDir, 0755); err != nil {
			return core.DocumentContent{}, err
		}
		imagePath := filepath.Join(imageDir, path.Base(rel.Target))
		if err := os.WriteFile(imagePath, data, 0644); err != nil {
			return core.DocumentContent{}, fmt.Errorf("write image %s: %w", imagePath, err)
		}
		images = append(images, imagePath)
	}

	return core.DocumentContent{Text: &text, Images: images}, nil
}
