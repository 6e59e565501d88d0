// Package document holds immutable PDF revisions.
//
// A Document is opened once from a byte buffer and never changes. Every
// embed produces a new Document whose Parent is the digest of the revision
// it was built from, forming a causal chain that ends at the loaded file.
package document

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	pdflib "github.com/digitorus/pdf"
	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
	"golang.org/x/crypto/blake2b"
)

// Document is an immutable PDF revision with its page geometry.
type Document struct {
	data     []byte
	rdr      *pdflib.Reader
	boxes    []ipdf.Box
	digest   string
	parent   string
	revision int
}

// Open parses data into a Document. The buffer is copied, later changes to
// data do not affect the Document.
func Open(data []byte) (*Document, error) {
	return open(bytes.Clone(data), "", 0)
}

// OpenFile reads and parses a PDF from disk.
func OpenFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return open(data, "", 0)
}

// Next parses data as the revision that follows d. The buffer is owned by
// the returned Document and must not be modified by the caller.
func (d *Document) Next(data []byte) (*Document, error) {
	return open(data, d.digest, d.revision+1)
}

func open(data []byte, parent string, revision int) (doc *Document, err error) {
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}

	// The reader panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	rdr, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if bytes.Contains(data, []byte("/Encrypt")) {
			return nil, fmt.Errorf("failed to open PDF: %w", common.ErrEncrypted)
		}
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	if !rdr.Trailer().Key("Encrypt").IsNull() {
		return nil, fmt.Errorf("failed to open PDF: %w", common.ErrEncrypted)
	}

	count := rdr.NumPage()
	if count == 0 {
		return nil, errors.New("document has no pages")
	}

	boxes := make([]ipdf.Box, count)
	for i := range boxes {
		page, err := ipdf.FindPage(rdr, i+1)
		if err != nil {
			return nil, err
		}
		if boxes[i], err = ipdf.MediaBox(page); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}

	return &Document{
		data:     data,
		rdr:      rdr,
		boxes:    boxes,
		digest:   Digest(data),
		parent:   parent,
		revision: revision,
	}, nil
}

// Bytes returns a copy of the document bytes.
func (d *Document) Bytes() []byte {
	return bytes.Clone(d.data)
}

// Len returns the size of the document in bytes.
func (d *Document) Len() int {
	return len(d.data)
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.boxes)
}

// PageSize returns the native size of the 1-based page n in PDF points.
func (d *Document) PageSize(n int) (coords.Size, error) {
	box, err := d.PageBox(n)
	if err != nil {
		return coords.Size{}, err
	}
	return coords.Size{Width: box.Width(), Height: box.Height()}, nil
}

// PageBox returns the MediaBox of the 1-based page n.
func (d *Document) PageBox(n int) (ipdf.Box, error) {
	if n < 1 || n > len(d.boxes) {
		return ipdf.Box{}, &common.PageOutOfRangeError{Page: n, PageCount: len(d.boxes)}
	}
	return d.boxes[n-1], nil
}

// Reader returns a parser over the document bytes. The reader is shared and
// must only be used for reading.
func (d *Document) Reader() *pdflib.Reader {
	return d.rdr
}

// NewReader returns a parser of its own over the document bytes, for use
// from another goroutine.
func (d *Document) NewReader() (*pdflib.Reader, error) {
	return pdflib.NewReader(bytes.NewReader(d.data), int64(len(d.data)))
}

// Digest returns the hex BLAKE2b-256 digest of the document bytes.
func (d *Document) Digest() string {
	return d.digest
}

// Parent returns the digest of the revision this one was derived from, or
// the empty string for a loaded document.
func (d *Document) Parent() string {
	return d.parent
}

// Revision returns the number of embeds between the loaded document and d.
func (d *Document) Revision() int {
	return d.revision
}

// Digest returns the hex BLAKE2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
