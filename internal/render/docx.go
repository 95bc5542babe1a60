package render

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const wmlNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// DocxEngine renders tailored resume text into a minimal OOXML package.
// Markdown-style heading lines become bold paragraphs; everything else is
// emitted as plain paragraphs, one per input line.
type DocxEngine struct{}

// NewDocxEngine constructs a DOCX engine.
func NewDocxEngine() *DocxEngine {
	return &DocxEngine{}
}

// Render builds the DOCX byte slice.
func (e *DocxEngine) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmptyDocument
	}

	var output bytes.Buffer
	writer := zip.NewWriter(&output)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", buildDocumentXML(doc)},
	}
	for _, part := range parts {
		dst, err := writer.Create(part.name)
		if err != nil {
			return nil, err
		}
		if _, err := dst.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

// Close is a no-op; the engine holds no external resources.
func (e *DocxEngine) Close() error { return nil }

func buildDocumentXML(doc Document) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString("\n")
	b.WriteString(`<w:document xmlns:w="` + wmlNamespace + `"><w:body>`)

	if title := strings.TrimSpace(doc.Title); title != "" {
		writeParagraph(&b, title, true)
	}
	for _, line := range strings.Split(doc.Text, "\n") {
		line = strings.TrimRight(line, "\r")
		heading := false
		if trimmed := strings.TrimLeft(line, "#"); trimmed != line {
			line = strings.TrimSpace(trimmed)
			heading = true
		}
		writeParagraph(&b, line, heading)
	}

	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func writeParagraph(b *strings.Builder, text string, bold bool) {
	if strings.TrimSpace(text) == "" {
		b.WriteString(`<w:p/>`)
		return
	}
	b.WriteString(`<w:p><w:r>`)
	if bold {
		b.WriteString(`<w:rPr><w:b/></w:rPr>`)
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	b.WriteString(escapeXML(text))
	b.WriteString(`</w:t></w:r></w:p>`)
}

func escapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}

var _ Engine = (*DocxEngine)(nil)
