package office

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/poiesic/lmao/core"
)

const pptxMainPart = "ppt/presentation.xml"

type pptxPresentation struct {
	SlideIDs []struct {
		RelID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type pptxSlide struct {
	Shapes   []pptxShape   `xml:"cSld>spTree>sp"`
	Pictures []pptxPicture `xml:"cSld>spTree>pic"`
}

type pptxShape struct {
	TxBody *struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"txBody"`
}

type pptxPicture struct {
	NvPicPr struct {
		CNvPr struct {
			ID string `xml:"id,attr"`
		} `xml:"cNvPr"`
	} `xml:"nvPicPr"`
	BlipFill struct {
		Blip struct {
			Embed string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships embed,attr"`
		} `xml:"blip"`
	} `xml:"blipFill"`
}

// ExtractPPTX returns the text of every text-bearing top-level shape in
// slide order, joined by newlines. Pictures are decoded and written to
// imageDir as <shape id>.png.
func ExtractPPTX(filePath, imageDir string) (core.DocumentContent, error) {
	p, err := openPackage(filePath)
	if err != nil {
		return core.DocumentContent{}, err
	}
	defer p.Close()

	slides, err := slideParts(p)
	if err != nil {
		return core.DocumentContent{}, err
	}

	var texts, images []string
	for _, part := range slides {
		var slide pptxSlide
		if err := p.decode(part, &slide); err != nil {
			return core.DocumentContent{}, err
		}
		for _, shape := range slide.Shapes {
			if shape.TxBody != nil {
				texts = append(texts, joinParagraphs(shape.TxBody.Paragraphs))
			}
		}
		if len(slide.Pictures) == 0 {
			continue
		}

		rels, err := p.readRels(part)
		if err != nil {
			return core.DocumentContent{}, err
		}
		targets := make(map[string]string, len(rels))
		for _, rel := range rels {
			if rel.TargetMode != "External" {
				targets[rel.ID] = resolveTarget(part, rel.Target)
			}
		}

		for _, pic := range slide.Pictures {
			target, ok := targets[pic.BlipFill.Blip.Embed]
			if !ok {
				continue
			}
			imagePath, err := convertPicture(p, target, imageDir, pic.NvPicPr.CNvPr.ID)
			if err != nil {
				slog.Default().With("component", "office").Warn("skipping picture", "file", filePath, "part", target, "err", err)
				continue
			}
			images = append(images, imagePath)
		}
	}

	text := strings.Join(texts, "\n")
	return core.DocumentContent{Text: &text, Images: images}, nil
}

// slideParts lists slide part names in presentation order.
func slideParts(p *pkg) ([]string, error) {
	var pres pptxPresentation
	if err := p.decode(pptxMainPart, &pres); err != nil {
		return nil, err
	}
	rels, err := p.readRels(pptxMainPart)
	if err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels))
	for _, rel := range rels {
		targets[rel.ID] = resolveTarget(pptxMainPart, rel.Target)
	}

	parts := make([]string, 0, len(pres.SlideIDs))
	for _, id := range pres.SlideIDs {
		if target, ok := targets[id.RelID]; ok {
			parts = append(parts, target)
		}
	}
	return parts, nil
}

// convertPicture re-encodes an embedded image as PNG.
func convertPicture(p *pkg, part, imageDir, shapeID string) (string, error) {
	data, err := p.read(part)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", part, err)
	}

	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return "", err
	}
	imagePath := filepath.Join(imageDir, shapeID+".png")
	f, err := os.Create(imagePath)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s: %w", imagePath, err)
	}
	return imagePath, f.Close()
}
