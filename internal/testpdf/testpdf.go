// Package testpdf synthesizes small, well-formed PDF files for tests.
//
// Offsets in the cross-reference section are computed exactly, so the output
// parses with strict readers and can be extended with incremental updates.
package testpdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Page describes one page of a synthesized document.
type Page struct {
	Width, Height float64
	// X and Y move the lower-left corner of the MediaBox off 0,0.
	X, Y float64
	// Content holds raw content stream operators. Empty pages get a single
	// filled square so rasterized output is not blank.
	Content string
}

// Options controls the document layout.
type Options struct {
	// XrefStream writes a cross-reference stream instead of a table.
	XrefStream bool
	// Encrypt adds a Standard security handler dictionary to the trailer.
	Encrypt bool
	// InheritMediaBox places the MediaBox of the first page on the page tree
	// node instead of the page itself. All pages must share that size.
	InheritMediaBox bool
	// SharedResources places a Resources dictionary on the page tree node.
	SharedResources bool
	// NoInfo omits the document information dictionary.
	NoInfo bool
}

const defaultContent = "0.8 g 72 72 144 144 re f"

// Letter returns a document with n US-Letter pages.
func Letter(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Width: 612, Height: 792}
	}
	return Build(pages, Options{})
}

// Build returns a PDF with the given pages.
func Build(pages []Page, opts Options) []byte {
	b := &builder{offsets: map[int]int{}}
	b.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	const catalogID, pagesID, infoID = 1, 2, 3
	firstPage := 4

	kids := new(bytes.Buffer)
	for i := range pages {
		fmt.Fprintf(kids, " %d 0 R", firstPage+2*i)
	}

	b.object(catalogID, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesID))

	tree := fmt.Sprintf("<< /Type /Pages /Kids [%s ] /Count %d", kids.String(), len(pages))
	if opts.InheritMediaBox && len(pages) > 0 {
		tree += " /MediaBox " + mediaBox(pages[0])
	}
	if opts.SharedResources {
		tree += " /Resources << /ProcSet [/PDF] >>"
	}
	b.object(pagesID, tree+" >>")

	b.object(infoID, "<< /Title (Test document) /Producer (testpdf) >>")

	for i, p := range pages {
		pageID := firstPage + 2*i
		contentID := pageID + 1

		page := fmt.Sprintf("<< /Type /Page /Parent %d 0 R", pagesID)
		if !opts.InheritMediaBox {
			page += " /MediaBox " + mediaBox(p)
		}
		if !opts.SharedResources {
			page += " /Resources << /ProcSet [/PDF] >>"
		}
		page += fmt.Sprintf(" /Contents %d 0 R >>", contentID)
		b.object(pageID, page)

		content := p.Content
		if content == "" {
			content = defaultContent
		}
		b.stream(contentID, "", []byte(content))
	}

	size := firstPage + 2*len(pages)

	trailer := fmt.Sprintf("/Root %d 0 R", catalogID)
	if !opts.NoInfo {
		trailer += fmt.Sprintf(" /Info %d 0 R", infoID)
	}
	trailer += " /ID [<00112233445566778899aabbccddeeff> <00112233445566778899aabbccddeeff>]"
	if opts.Encrypt {
		trailer += " /Encrypt << /Filter /Standard /V 1 /R 2 /P -4" +
			" /O <" + hex32 + "> /U <" + hex32 + "> >>"
	}

	if opts.XrefStream {
		b.xrefStream(size, trailer)
	} else {
		b.xrefTable(size, trailer)
	}
	return b.buf.Bytes()
}

func mediaBox(p Page) string {
	return fmt.Sprintf("[%s %s %s %s]", num(p.X), num(p.Y), num(p.X+p.Width), num(p.Y+p.Height))
}

const hex32 = "0000000000000000000000000000000000000000000000000000000000000000"

type builder struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func (b *builder) object(id int, body string) {
	b.offsets[id] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", id, body)
}

func (b *builder) stream(id int, dict string, data []byte) {
	b.offsets[id] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s/Length %d >>\nstream\n", id, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
}

func (b *builder) xrefTable(size int, trailer string) {
	start := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", size)
	b.buf.WriteString("0000000000 65535 f\r\n")
	for id := 1; id < size; id++ {
		fmt.Fprintf(&b.buf, "%010d 00000 n\r\n", b.offsets[id])
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", size, trailer, start)
}

func (b *builder) xrefStream(size int, trailer string) {
	xrefID := size
	start := b.buf.Len()
	b.offsets[xrefID] = start

	var data bytes.Buffer
	row := func(typ byte, off int, gen byte) {
		data.WriteByte(typ)
		var o [4]byte
		binary.BigEndian.PutUint32(o[:], uint32(off))
		data.Write(o[:])
		data.WriteByte(gen)
	}
	row(0, 0, 255)
	for id := 1; id <= xrefID; id++ {
		row(1, b.offsets[id], 0)
	}

	fmt.Fprintf(&b.buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 1] %s /Length %d >>\nstream\n",
		xrefID, xrefID+1, trailer, data.Len())
	b.buf.Write(data.Bytes())
	fmt.Fprintf(&b.buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", start)
}

func num(v float64) string {
	return fmt.Sprintf("%g", v)
}
