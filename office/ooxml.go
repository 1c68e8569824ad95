package office

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrPartNotFound is returned when a package part is missing from the archive.
var ErrPartNotFound = errors.New("package part not found")

// pkg is an opened Office Open XML package.
type pkg struct {
	reader *zip.ReadCloser
	parts  map[string]*zip.File
}

func openPackage(filePath string) (*pkg, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	parts := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		parts[strings.TrimPrefix(f.Name, "/")] = f
	}
	return &pkg{reader: reader, parts: parts}, nil
}

func (p *pkg) Close() error {
	return p.reader.Close()
}

func (p *pkg) read(name string) ([]byte, error) {
	f, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (p *pkg) decode(name string, v any) error {
	data, err := p.read(name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationships struct {
	Items []relationship `xml:"Relationship"`
}

// relsPath returns the relationships part of a part: a/b.xml -> a/_rels/b.xml.rels.
func relsPath(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// readRels loads the relationships of part. A part without relationships
// has none.
func (p *pkg) readRels(part string) ([]relationship, error) {
	var rels relationships
	err := p.decode(relsPath(part), &rels)
	if errors.Is(err, ErrPartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rels.Items, nil
}

// resolveTarget resolves an internal relationship target against the
// directory of the source part.
func resolveTarget(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(sourcePart), target))
}

// paragraph collects the text of a w:p or a:p element. Only run content
// counts: t elements, tabs and breaks that sit directly in a run (or a
// field). Paragraph properties, tab stop definitions and the Fallback
// branch of alternate content are skipped.
type paragraph struct {
	Text string
}

func (p *paragraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	if err := readContainer(d, &b); err != nil {
		return err
	}
	p.Text = b.String()
	return nil
}

// readContainer consumes tokens up to the end of the current element,
// descending into wrappers such as hyperlinks, insertions and content
// controls.
func readContainer(d *xml.Decoder, b *strings.Builder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r", "fld":
				err = readRun(d, b)
			case "br":
				// a:br is a direct child of a:p.
				b.WriteByte('\n')
				err = d.Skip()
			case "pPr", "endParaRPr", "Fallback":
				err = d.Skip()
			default:
				err = readContainer(d, b)
			}
			if err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func readRun(d *xml.Decoder, b *strings.Builder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var text string
				err = d.DecodeElement(&text, &t)
				b.WriteString(text)
			case "tab":
				b.WriteByte('\t')
				err = d.Skip()
			case "br", "cr":
				b.WriteByte('\n')
				err = d.Skip()
			default:
				err = d.Skip()
			}
			if err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func joinParagraphs(paragraphs []paragraph) string {
	lines := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		lines[i] = p.Text
	}
	return strings.Join(lines, "\n")
}
