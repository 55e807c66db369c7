package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readParts(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	parts := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open(%s) error = %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("ReadAll(%s) error = %v", f.Name, err)
		}
		parts[f.Name] = string(b)
	}
	return parts
}

// bodyParagraphs decodes document.xml into (style, text) pairs.
func bodyParagraphs(t *testing.T, doc string) []paragraph {
	t.Helper()
	var parsed struct {
		Body struct {
			Paragraphs []struct {
				Style struct {
					Val string `xml:"val,attr"`
				} `xml:"pPr>pStyle"`
				Texts []string `xml:"r>t"`
			} `xml:"p"`
		} `xml:"body"`
	}
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("xml.Unmarshal(document.xml) error = %v", err)
	}
	out := make([]paragraph, 0, len(parsed.Body.Paragraphs))
	for _, p := range parsed.Body.Paragraphs {
		out = append(out, paragraph{style: p.Style.Val, text: strings.Join(p.Texts, "")})
	}
	return out
}

func sampleDocument() Document {
	return Document{
		Title:     "Go & You",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Chapters: []Chapter{
			{
				Title:   "Basics",
				Summary: []string{"Learn types", "Learn <loops>"},
				Content: "# Intro\n\nSome **bold** text\n- item one",
			},
			{Title: "  ", Summary: []string{"Wrap up"}},
		},
	}
}

func TestBuilderParts(t *testing.T) {
	data, err := NewBuilder(sampleDocument()).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	parts := readParts(t, data)

	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"docProps/core.xml",
		"docProps/app.xml",
		"word/_rels/document.xml.rels",
		"word/styles.xml",
		"word/document.xml",
	} {
		content, ok := parts[name]
		if !ok {
			t.Errorf("missing part %s", name)
			continue
		}
		dec := xml.NewDecoder(strings.NewReader(content))
		for {
			if _, err := dec.Token(); err != nil {
				if err != io.EOF {
					t.Errorf("%s is not well-formed: %v", name, err)
				}
				break
			}
		}
	}

	if !strings.Contains(parts["docProps/core.xml"], "<dc:title>Go &amp; You</dc:title>") {
		t.Errorf("core.xml title not escaped: %s", parts["docProps/core.xml"])
	}
	if !strings.Contains(parts["docProps/core.xml"], "2026-01-02T03:04:05Z") {
		t.Errorf("core.xml missing created time")
	}
}

func TestBuilderBody(t *testing.T) {
	data, err := NewBuilder(sampleDocument()).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	got := bodyParagraphs(t, readParts(t, data)["word/document.xml"])

	want := []paragraph{
		{style: styleTitle, text: "Go & You"},
		{style: styleHeading1, text: "Chapter 1: Basics"},
		{text: "Learn types"},
		{text: "Learn <loops>"},
		{style: styleHeading2, text: "Intro"},
		{},
		{text: "Some bold text"},
		{text: "• item one"},
		{style: styleHeading1, text: "Chapter 2: Untitled"},
		{text: "Wrap up"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d paragraphs, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paragraph %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuilderStyles(t *testing.T) {
	data, err := NewBuilder(Document{Title: "T"}).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	styles := readParts(t, data)["word/styles.xml"]

	for _, want := range []string{
		`w:styleId="Title"`,
		`<w:sz w:val="48"/><w:color w:val="4455AA"/>`,
		`<w:sz w:val="32"/><w:color w:val="223355"/>`,
		`<w:sz w:val="26"/><w:color w:val="334455"/>`,
		`<w:sz w:val="24"/><w:color w:val="111111"/>`,
	} {
		if !strings.Contains(styles, want) {
			t.Errorf("styles.xml missing %s", want)
		}
	}
}

func TestBuildWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "course.docx")
	if err := NewBuilder(sampleDocument()).Build(path); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if _, ok := readParts(t, data)["word/document.xml"]; !ok {
		t.Error("built file missing word/document.xml")
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"Course":        "Course.docx",
		"Go Basics":     "Go%20Basics.docx",
		"a/b":           "a%2Fb.docx",
		"Ünïcode title": "%C3%9Cn%C3%AFcode%20title.docx",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}
