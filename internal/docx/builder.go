// Package docx renders a course to a Word (OOXML) document.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ContentType is the MIME type of a .docx file.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Document is the input for a build.
type Document struct {
	Title     string
	Author    string
	Chapters  []Chapter
	CreatedAt time.Time
}

// Chapter is one chapter: a heading, its summary points, then markdown content.
type Chapter struct {
	Title   string
	Summary []string
	Content string
}

// Builder creates .docx files.
type Builder struct {
	doc   Document
	theme Theme
}

// NewBuilder creates a new docx builder with the default theme.
func NewBuilder(doc Document) *Builder {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.Author == "" {
		doc.Author = "quill"
	}
	return &Builder{doc: doc, theme: DefaultTheme}
}

// Build generates the document and writes it to outputPath.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return b.Write(f)
}

// Bytes returns the document as a byte slice.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes the document package to w.
func (b *Builder) Write(w io.Writer) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"docProps/core.xml", b.coreProperties()},
		{"docProps/app.xml", appPropertiesXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", b.styles()},
		{"word/document.xml", b.document()},
	}
	for _, p := range parts {
		if err := writePart(zw, p.name, p.content); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize docx: %w", err)
	}
	return nil
}

func writePart(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// paragraphs lays out the document body: the title, then for each chapter a
// "Chapter N: title" heading, one paragraph per summary point and the
// cleaned markdown content line by line.
func (b *Builder) paragraphs() []paragraph {
	out := []paragraph{{style: styleTitle, text: b.doc.Title}}

	for i, ch := range b.doc.Chapters {
		title := strings.TrimSpace(ch.Title)
		if title == "" {
			title = "Untitled"
		}
		out = append(out, paragraph{style: styleHeading1, text: fmt.Sprintf("Chapter %d: %s", i+1, title)})

		for _, s := range ch.Summary {
			out = append(out, paragraph{text: s})
		}
		if ch.Content != "" {
			out = append(out, markdownParagraphs(ch.Content)...)
		}
	}
	return out
}

// FileName returns the attachment file name for a title, percent-encoded.
func FileName(title string) string {
	return url.PathEscape(title) + ".docx"
}
