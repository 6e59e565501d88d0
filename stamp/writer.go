package stamp

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"

	pdflib "github.com/digitorus/pdf"
	"github.com/digitorus/pdfstamp/document"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
	"github.com/mattetti/filebuffer"
)

type xrefEntry struct {
	ID     uint32
	Gen    uint16
	Offset int64
}

// writer appends an incremental update to a document: new and replaced
// objects, a cross-reference section in the style of the original file and
// a trailer chaining back to the previous one.
type writer struct {
	rdr    *pdflib.Reader
	output *filebuffer.Buffer

	nextID         uint32
	newEntries     []xrefEntry
	updatedEntries []xrefEntry

	// info is the object number of the information dictionary written by
	// this update, or zero to keep the existing one.
	info uint32

	compressLevel int
}

func newWriter(doc *document.Document, compressLevel int) (*writer, error) {
	rdr := doc.Reader()

	switch rdr.XrefInformation.Type {
	case "table", "stream":
	default:
		return nil, fmt.Errorf("unknown xref type %q", rdr.XrefInformation.Type)
	}

	size := rdr.Trailer().Key("Size").Int64()
	if size <= 0 {
		return nil, fmt.Errorf("trailer has no valid /Size")
	}

	w := &writer{
		rdr:           rdr,
		output:        filebuffer.New([]byte{}),
		nextID:        uint32(size),
		compressLevel: compressLevel,
	}

	// Copy the old file into the new buffer.
	if _, err := w.output.Write(doc.Bytes()); err != nil {
		return nil, err
	}
	// The original file always needs an empty line after %%EOF.
	if _, err := w.output.Write([]byte("\n")); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *writer) offset() int64 {
	return int64(w.output.Buff.Len())
}

// addObject writes body as a new object and returns its number.
func (w *writer) addObject(body []byte) (uint32, error) {
	id := w.nextID
	w.nextID++

	w.newEntries = append(w.newEntries, xrefEntry{ID: id, Offset: w.offset()})
	if err := w.writeObject(id, 0, body); err != nil {
		return 0, fmt.Errorf("failed to add object %d: %w", id, err)
	}
	return id, nil
}

// addStream writes a stream object. dict holds the stream dictionary entries
// except /Length.
func (w *writer) addStream(dict string, data []byte) (uint32, error) {
	var body bytes.Buffer
	fmt.Fprintf(&body, "<< %s/Length %d >>\nstream\n", dict, len(data))
	body.Write(data)
	body.WriteString("\nendstream")
	return w.addObject(body.Bytes())
}

// updateObject writes a new version of an existing object.
func (w *writer) updateObject(id uint32, gen uint16, body []byte) error {
	w.updatedEntries = append(w.updatedEntries, xrefEntry{ID: id, Gen: gen, Offset: w.offset()})
	if err := w.writeObject(id, gen, body); err != nil {
		return fmt.Errorf("failed to update object %d: %w", id, err)
	}
	return nil
}

func (w *writer) writeObject(id uint32, gen uint16, body []byte) error {
	if _, err := fmt.Fprintf(w.output, "%d %d obj\n", id, gen); err != nil {
		return err
	}
	if _, err := w.output.Write(body); err != nil {
		return err
	}
	_, err := w.output.Write([]byte("\nendobj\n"))
	return err
}

// finish writes the cross-reference section and trailer and returns the
// complete file.
func (w *writer) finish() ([]byte, error) {
	slices.SortFunc(w.updatedEntries, func(a, b xrefEntry) int { return int(a.ID) - int(b.ID) })

	var err error
	if w.rdr.XrefInformation.Type == "stream" {
		err = w.writeXrefStream()
	} else {
		err = w.writeXrefTable()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write xref: %w", err)
	}
	return w.output.Buff.Bytes(), nil
}

func (w *writer) writeXrefTable() error {
	start := w.offset()

	var buf bytes.Buffer
	buf.WriteString("xref\n")
	for _, entry := range w.updatedEntries {
		fmt.Fprintf(&buf, "%d 1\n", entry.ID)
		fmt.Fprintf(&buf, "%010d %05d n\r\n", entry.Offset, entry.Gen)
	}
	if len(w.newEntries) > 0 {
		fmt.Fprintf(&buf, "%d %d\n", w.newEntries[0].ID, len(w.newEntries))
		for _, entry := range w.newEntries {
			fmt.Fprintf(&buf, "%010d 00000 n\r\n", entry.Offset)
		}
	}

	buf.WriteString("trailer\n")
	fmt.Fprintf(&buf, "<< /Size %d", w.nextID)
	w.writeTrailerEntries(&buf)
	buf.WriteString(" >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", start)

	_, err := w.output.Write(buf.Bytes())
	return err
}

func (w *writer) writeXrefStream() error {
	id := w.nextID
	w.nextID++
	start := w.offset()

	entries := slices.Concat(w.updatedEntries, w.newEntries, []xrefEntry{{ID: id, Offset: start}})

	var rows bytes.Buffer
	var index []uint32
	for i, entry := range entries {
		writeXrefStreamLine(&rows, 1, entry.Offset, entry.Gen)
		if i > 0 && entries[i-1].ID+1 == entry.ID {
			index[len(index)-1]++
			continue
		}
		index = append(index, entry.ID, 1)
	}

	var data bytes.Buffer
	zw, err := zlib.NewWriterLevel(&data, zlib.DefaultCompression)
	if err != nil {
		return err
	}
	if _, err := zw.Write(rows.Bytes()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	var dict bytes.Buffer
	fmt.Fprintf(&dict, "<< /Type /XRef /Size %d /W [1 4 1] /Index [", w.nextID)
	for i, v := range index {
		if i > 0 {
			dict.WriteString(" ")
		}
		fmt.Fprintf(&dict, "%d", v)
	}
	dict.WriteString("]")
	w.writeTrailerEntries(&dict)
	fmt.Fprintf(&dict, " /Filter /FlateDecode /Length %d >>\nstream\n", data.Len())
	dict.Write(data.Bytes())
	dict.WriteString("\nendstream")

	if err := w.writeObject(id, 0, dict.Bytes()); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w.output, "startxref\n%d\n%%%%EOF\n", start)
	return err
}

// writeTrailerEntries writes the trailer keys shared by both xref styles.
func (w *writer) writeTrailerEntries(buf *bytes.Buffer) {
	trailer := w.rdr.Trailer()

	rootID, rootGen := ipdf.Ref(trailer.Key("Root"))
	fmt.Fprintf(buf, " /Root %d %d R", rootID, rootGen)
	fmt.Fprintf(buf, " /Prev %d", w.rdr.XrefInformation.StartPos)

	if w.info != 0 {
		fmt.Fprintf(buf, " /Info %d 0 R", w.info)
	} else if info := trailer.Key("Info"); !info.IsNull() {
		infoID, infoGen := ipdf.Ref(info)
		fmt.Fprintf(buf, " /Info %d %d R", infoID, infoGen)
	}

	if id := trailer.Key("ID"); id.Kind() == pdflib.Array && id.Len() == 2 {
		id0 := hex.EncodeToString([]byte(id.Index(0).RawString()))
		id1 := hex.EncodeToString([]byte(id.Index(1).RawString()))
		fmt.Fprintf(buf, " /ID [<%s> <%s>]", id0, id1)
	}
}

// writeXrefStreamLine writes a single row of a [1 4 1] xref stream.
func writeXrefStreamLine(b *bytes.Buffer, xreftype byte, offset int64, gen uint16) {
	b.WriteByte(xreftype)

	var offsetBytes [4]byte
	binary.BigEndian.PutUint32(offsetBytes[:], uint32(offset))
	b.Write(offsetBytes[:])

	b.WriteByte(byte(gen))
}
