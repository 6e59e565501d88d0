package stamp

import (
	"bytes"
	"fmt"
	"strconv"

	pdflib "github.com/digitorus/pdf"
	"github.com/digitorus/pdfstamp/coords"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
)

// imageNamePrefix names the stamp images in a page's XObject resources.
const imageNamePrefix = "PdfStampIm"

// stampPage rewrites page n so that it draws the image XObject imgID with
// its lower-left corner at at, scaled to size. The original content is
// wrapped in q/Q so its graphics state cannot leak into the stamp.
func (w *writer) stampPage(n int, imgID uint32, at coords.Point, size coords.Size) error {
	page, err := ipdf.FindPage(w.rdr, n)
	if err != nil {
		return err
	}
	pageID, pageGen := ipdf.Ref(page)
	if pageID == 0 {
		return fmt.Errorf("page %d is not an indirect object", n)
	}

	resources := ipdf.Inherited(page, "Resources")
	name := uniqueName(resources.Key("XObject"), imageNamePrefix)
	existing := ipdf.ContentStreams(page)

	var ops bytes.Buffer
	var saveID uint32
	if len(existing) > 0 {
		if saveID, err = w.addStream("", []byte("q\n")); err != nil {
			return fmt.Errorf("failed to add content prefix: %w", err)
		}
		ops.WriteString("Q\n")
	}
	fmt.Fprintf(&ops, "q\n%.4f 0 0 %.4f %.4f %.4f cm\n/%s Do\nQ\n", size.Width, size.Height, at.X, at.Y, name)

	stampID, err := w.addStream("", ops.Bytes())
	if err != nil {
		return fmt.Errorf("failed to add stamp content: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("<<")
	ipdf.WriteEntries(&buf, pageID, page, map[string]bool{"Contents": true, "Resources": true})

	buf.WriteString(" /Contents [")
	if saveID != 0 {
		fmt.Fprintf(&buf, "%d 0 R", saveID)
	}
	for _, stream := range existing {
		id, gen := ipdf.Ref(stream)
		fmt.Fprintf(&buf, " %d %d R", id, gen)
	}
	fmt.Fprintf(&buf, " %d 0 R]", stampID)

	buf.WriteString(" /Resources ")
	writeResources(&buf, resources, name, imgID)
	buf.WriteString(" >>")

	return w.updateObject(pageID, pageGen, buf.Bytes())
}

// writeResources writes a copy of res with imgID added to its XObject
// dictionary under name.
func writeResources(buf *bytes.Buffer, res pdflib.Value, name string, imgID uint32) {
	if res.Kind() != pdflib.Dict {
		fmt.Fprintf(buf, "<< /ProcSet [/PDF /ImageB /ImageC] /XObject << /%s %d 0 R >> >>", name, imgID)
		return
	}

	owner, _ := ipdf.Ref(res)
	buf.WriteString("<<")
	ipdf.WriteEntries(buf, owner, res, map[string]bool{"XObject": true})

	buf.WriteString(" /XObject <<")
	if xobjects := res.Key("XObject"); xobjects.Kind() == pdflib.Dict {
		xowner, _ := ipdf.Ref(xobjects)
		ipdf.WriteEntries(buf, xowner, xobjects, nil)
	}
	fmt.Fprintf(buf, " /%s %d 0 R >> >>", name, imgID)
}

// uniqueName returns prefix followed by the smallest positive number that
// is not already a key of dict.
func uniqueName(dict pdflib.Value, prefix string) string {
	taken := map[string]bool{}
	if dict.Kind() == pdflib.Dict {
		for _, key := range dict.Keys() {
			taken[key] = true
		}
	}
	for i := 1; ; i++ {
		name := prefix + strconv.Itoa(i)
		if !taken[name] {
			return name
		}
	}
}
