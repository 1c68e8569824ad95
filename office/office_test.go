package office

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/image/bmp"
)

const (
	wNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`
	pNS = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	rNS = `xmlns="http://schemas.openxmlformats.org/package/2006/relationships"`
)

func writeZip(t *testing.T, path string, parts map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testBMP(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "report.docx")
	imageDir := filepath.Join(dir, "images")
	pngData := testPNG(t)

	writeZip(t, docPath, map[string][]byte{
		"word/document.xml": []byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document ` + wNS + `><w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
<w:p/>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>in table</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>
</w:body></w:document>`),
		"word/_rels/document.xml.rels": []byte(`<Relationships ` + rNS + `>
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/image" TargetMode="External"/>
</Relationships>`),
		"word/media/image1.png": pngData,
	})

	content, err := ExtractDOCX(docPath, imageDir)
	require.NoError(t, err)
	require.NotNil(t, content.Text)
	assert.Equal(t, "Hello world\n\na\tb\nc", *content.Text)
	require.Len(t, content.Images, 1)
	assert.Equal(t, filepath.Join(imageDir, "image1.png"), content.Images[0])

	written, err := os.ReadFile(content.Images[0])
	require.NoError(t, err)
	assert.Equal(t, pngData, written)
	assert.Nil(t, content.Table)
}

func TestExtractDOCX_ParagraphText(t *testing.T) {
	const mcNS = `xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"`
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "tab stops are not text",
			body: `<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/><w:tab w:val="right" w:pos="9360"/></w:tabs></w:pPr><w:r><w:t>Hello</w:t></w:r></w:p>`,
			want: "Hello",
		},
		{
			name: "run properties are skipped",
			body: `<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t><w:tab/><w:t>next</w:t></w:r></w:p>`,
			want: "bold\tnext",
		},
		{
			name: "hyperlink runs are kept",
			body: `<w:p><w:r><w:t xml:space="preserve">see </w:t></w:r><w:hyperlink><w:r><w:t>docs</w:t></w:r></w:hyperlink></w:p>`,
			want: "see docs",
		},
		{
			name: "alternate content is read once",
			body: `<w:p><mc:AlternateContent><mc:Choice Requires="wps"><w:r><w:t>box</w:t></w:r></mc:Choice><mc:Fallback><w:r><w:t>box</w:t></w:r></mc:Fallback></mc:AlternateContent></w:p>`,
			want: "box",
		},
		{
			name: "drawings inside a run are ignored",
			body: `<w:p><w:r><w:t>before</w:t></w:r><w:r><w:drawing><w:txbxContent><w:p><w:r><w:t>inner</w:t></w:r></w:p></w:txbxContent></w:drawing></w:r></w:p>`,
			want: "before",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			docPath := filepath.Join(dir, "doc.docx")
			writeZip(t, docPath, map[string][]byte{
				"word/document.xml": []byte(`<w:document ` + wNS + ` ` + mcNS + `><w:body>` + tt.body + `</w:body></w:document>`),
			})

			content, err := ExtractDOCX(docPath, filepath.Join(dir, "images"))
			require.NoError(t, err)
			require.NotNil(t, content.Text)
			assert.Equal(t, tt.want, *content.Text)
		})
	}
}

func TestExtractDOCX_MissingDocumentPart(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "broken.docx")
	writeZip(t, docPath, map[string][]byte{"other.xml": []byte("<x/>")})

	_, err := ExtractDOCX(docPath, dir)
	assert.ErrorIs(t, err, ErrPartNotFound)
}

func TestExtractDOCX_NotAZip(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "plain.docx")
	require.NoError(t, os.WriteFile(docPath, []byte("not a zip"), 0644))

	_, err := ExtractDOCX(docPath, dir)
	assert.Error(t, err)
}

func pptxParts(t *testing.T) map[string][]byte {
	slide := func(body string) []byte {
		return []byte(`<p:sld ` + pNS + `><p:cSld><p:spTree>` + body + `</p:spTree></p:cSld></p:sld>`)
	}
	return map[string][]byte{
		"ppt/presentation.xml": []byte(`<p:presentation ` + pNS + `><p:sldIdLst>
<p:sldId id="256" r:id="rId3"/><p:sldId id="257" r:id="rId2"/>
</p:sldIdLst></p:presentation>`),
		"ppt/_rels/presentation.xml.rels": []byte(`<Relationships ` + rNS + `>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide2.xml"/>
<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/>
</Relationships>`),
		"ppt/slides/slide1.xml": slide(`
<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title"/></p:nvSpPr><p:txBody><a:p><a:r><a:t>First</a:t></a:r></a:p></p:txBody></p:sp>
<p:pic><p:nvPicPr><p:cNvPr id="7" name="Picture"/></p:nvPicPr><p:blipFill><a:blip r:embed="rId1"/></p:blipFill></p:pic>
<p:pic><p:nvPicPr><p:cNvPr id="8" name="Vector"/></p:nvPicPr><p:blipFill><a:blip r:embed="rId2"/></p:blipFill></p:pic>`),
		"ppt/slides/_rels/slide1.xml.rels": []byte(`<Relationships ` + rNS + `>
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.bmp"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image2.emf"/>
</Relationships>`),
		"ppt/slides/slide2.xml": slide(`
<p:sp><p:nvSpPr><p:cNvPr id="2" name="Body"/></p:nvSpPr><p:txBody><a:p><a:r><a:t>Second</a:t></a:r></a:p><a:p><a:r><a:t>line </a:t></a:r><a:r><a:t>two</a:t></a:r></a:p></p:txBody></p:sp>
<p:sp><p:nvSpPr><p:cNvPr id="3" name="Line"/></p:nvSpPr></p:sp>`),
		"ppt/media/image1.bmp": testBMP(t),
		"ppt/media/image2.emf": []byte("not an image"),
	}
}

func TestExtractPPTX(t *testing.T) {
	dir := t.TempDir()
	deckPath := filepath.Join(dir, "deck.pptx")
	imageDir := filepath.Join(dir, "images")
	writeZip(t, deckPath, pptxParts(t))

	content, err := ExtractPPTX(deckPath, imageDir)
	require.NoError(t, err)
	require.NotNil(t, content.Text)
	assert.Equal(t, "First\nSecond\nline two", *content.Text)

	// The undecodable picture is skipped.
	require.Equal(t, []string{filepath.Join(imageDir, "7.png")}, content.Images)

	f, err := os.Open(content.Images[0])
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
}

func TestExtractPPTX_NoSlides(t *testing.T) {
	dir := t.TempDir()
	deckPath := filepath.Join(dir, "empty.pptx")
	writeZip(t, deckPath, map[string][]byte{
		"ppt/presentation.xml": []byte(`<p:presentation ` + pNS + `/>`),
	})

	content, err := ExtractPPTX(deckPath, dir)
	require.NoError(t, err)
	require.NotNil(t, content.Text)
	assert.Empty(t, *content.Text)
	assert.Empty(t, content.Images)
}

func TestExtractXLSX(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "book.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "count"))
	require.NoError(t, f.SetCellValue("Sheet1", "C1", "ripe"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "apples"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 3))
	require.NoError(t, f.SetCellValue("Sheet1", "C2", true))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "pears"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", 2.5))
	require.NoError(t, f.SetCellValue("Sheet1", "A4", "total"))
	require.NoError(t, f.SetCellFormula("Sheet1", "B4", "SUM(B2:B3)"))
	_, err := f.NewSheet("Empty")
	require.NoError(t, err)
	require.NoError(t, f.SaveAs(bookPath))
	require.NoError(t, f.Close())

	content, err := ExtractXLSX(bookPath)
	require.NoError(t, err)
	assert.Nil(t, content.Text)
	require.Len(t, content.Table, 2)
	assert.Equal(t, [][]any{
		{"name", "count", "ripe"},
		{"apples", 3.0, true},
		{"pears", 2.5, nil},
		{"total", "=SUM(B2:B3)", nil},
	}, content.Table[0]["Sheet1"])
	assert.Empty(t, content.Table[1]["Empty"])
}

func TestExtract_Dispatch(t *testing.T) {
	dir := t.TempDir()
	deckPath := filepath.Join(dir, "DECK.PPTX")
	writeZip(t, deckPath, pptxParts(t))

	content, err := Extract(deckPath, filepath.Join(dir, "images"))
	require.NoError(t, err)
	require.NotNil(t, content.Text)

	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("plain"), 0644))
	content, err = Extract(notes, dir)
	require.NoError(t, err)
	assert.Nil(t, content.Text)
	assert.Nil(t, content.Images)
	assert.Nil(t, content.Table)
}

func TestSupported(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.docx", true},
		{"b.PPTX", true},
		{"c.xlsx", true},
		{"d.pdf", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Supported(tt.name))
		})
	}
}

func TestExtractXLSX_FormattedNumbers(t *testing.T) {
	bookPath := filepath.Join(t.TempDir(), "fmt.xlsx")

	f := excelize.NewFile()
	grouped, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	require.NoError(t, err)
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 9}) // 0%
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 1234))
	require.NoError(t, f.SetCellStyle("Sheet1", "A1", "A1", grouped))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", 0.5))
	require.NoError(t, f.SetCellStyle("Sheet1", "B1", "B1", percent))
	require.NoError(t, f.SaveAs(bookPath))
	require.NoError(t, f.Close())

	content, err := ExtractXLSX(bookPath)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{1234.0, "50%"}}, content.Table[0]["Sheet1"])
}
