package docx

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const (
	styleTitle    = "Title"
	styleHeading1 = "Heading1"
	styleHeading2 = "Heading2"

	nsWordML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// paragraph is one body paragraph. An empty style means Normal.
type paragraph struct {
	style string
	text  string
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
  <Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
  <Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
  <Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const appPropertiesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">
  <Application>quill</Application>
</Properties>`

func (b *Builder) coreProperties() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
`)
	fmt.Fprintf(&sb, "  <dc:title>%s</dc:title>\n", escape(b.doc.Title))
	fmt.Fprintf(&sb, "  <dc:creator>%s</dc:creator>\n", escape(b.doc.Author))
	created := b.doc.CreatedAt.UTC().Format(time.RFC3339)
	fmt.Fprintf(&sb, "  <dcterms:created xsi:type=\"dcterms:W3CDTF\">%s</dcterms:created>\n", created)
	fmt.Fprintf(&sb, "  <dcterms:modified xsi:type=\"dcterms:W3CDTF\">%s</dcterms:modified>\n", created)
	sb.WriteString("</cp:coreProperties>")
	return sb.String()
}

func (b *Builder) styles() string {
	t := b.theme
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
`)
	fmt.Fprintf(&sb, "<w:styles xmlns:w=%q>\n", nsWordML)
	fmt.Fprintf(&sb, `  <w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii=%q w:hAnsi=%q w:cs=%q/><w:sz w:val="%d"/><w:color w:val=%q/></w:rPr></w:rPrDefault><w:pPrDefault><w:pPr><w:spacing w:after="120"/></w:pPr></w:pPrDefault></w:docDefaults>`+"\n",
		t.Font, t.Font, t.Font, t.Body.Size, t.Body.Color)
	sb.WriteString(`  <w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` + "\n")
	writeHeadingStyle(&sb, styleTitle, "Title", t.Title, 0, 240)
	writeHeadingStyle(&sb, styleHeading1, "heading 1", t.H1, 1, 240)
	writeHeadingStyle(&sb, styleHeading2, "heading 2", t.H2, 2, 180)
	sb.WriteString("</w:styles>")
	return sb.String()
}

// writeHeadingStyle writes a bold paragraph style. level 0 has no outline level.
func writeHeadingStyle(sb *strings.Builder, id, name string, ts TextStyle, level, before int) {
	fmt.Fprintf(sb, `  <w:style w:type="paragraph" w:styleId=%q><w:name w:val=%q/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/><w:pPr><w:keepNext/><w:spacing w:before="%d" w:after="120"/>`, id, name, before)
	if level > 0 {
		fmt.Fprintf(sb, `<w:outlineLvl w:val="%d"/>`, level-1)
	}
	fmt.Fprintf(sb, `</w:pPr><w:rPr><w:b/><w:sz w:val="%d"/><w:color w:val=%q/></w:rPr></w:style>`+"\n", ts.Size, ts.Color)
}

func (b *Builder) document() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
`)
	fmt.Fprintf(&sb, "<w:document xmlns:w=%q>\n<w:body>\n", nsWordML)
	for _, p := range b.paragraphs() {
		writeParagraph(&sb, p)
	}
	sb.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>
</w:body>
</w:document>`)
	return sb.String()
}

func writeParagraph(sb *strings.Builder, p paragraph) {
	if p.style == "" && p.text == "" {
		sb.WriteString("<w:p/>\n")
		return
	}
	sb.WriteString("<w:p>")
	if p.style != "" {
		fmt.Fprintf(sb, `<w:pPr><w:pStyle w:val=%q/></w:pPr>`, p.style)
	}
	if p.text != "" {
		fmt.Fprintf(sb, `<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, escape(p.text))
	}
	sb.WriteString("</w:p>\n")
}

// escape returns s with XML special characters escaped. Characters that are
// not legal in XML 1.0 become U+FFFD.
func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
