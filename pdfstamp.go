// Package pdfstamp places signer stamps onto PDF documents.
//
// Stamps are staged on a Document and written together as incremental
// updates, staff first:
//
//	doc, err := pdfstamp.OpenFile("contract.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	doc.Stamp(common.Staff, staffPNG).At(1, 0.1, 0.8)
//	doc.Stamp(common.Recipient, drawnPNG).At(2, 0.6, 0.8)
//
//	result, err := doc.Write(output)
//
// Positions are normalized to the page with the origin at the top-left
// corner. Use Convention(coords.BottomLeft) for positions stored with the
// origin at the bottom-left.
package pdfstamp

import (
	"compress/zlib"
	"fmt"
	"log/slog"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/images"
	"github.com/digitorus/pdfstamp/stamp"
)

// Document is a PDF with stamps staged for writing. Staging does not touch
// the underlying document; Write produces a new revision each time.
type Document struct {
	doc *document.Document

	pending []*StampBuilder

	width         float64
	compressLevel int
	limits        images.Limits
	logger        *slog.Logger
}

// Open parses data into a Document.
func Open(data []byte) (*Document, error) {
	doc, err := document.Open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return wrap(doc), nil
}

// OpenFile is a convenience method to read a Document from disk.
func OpenFile(path string) (*Document, error) {
	doc, err := document.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return wrap(doc), nil
}

func wrap(doc *document.Document) *Document {
	return &Document{
		doc:           doc,
		width:         common.StampWidth,
		compressLevel: zlib.DefaultCompression,
		limits:        images.DefaultLimits(),
		logger:        slog.Default(),
	}
}

// SetCompression sets the zlib level for re-encoded images.
func (d *Document) SetCompression(level int) {
	d.compressLevel = level
}

// SetStampWidth sets the stamp width in points. Heights follow the image
// aspect ratio.
func (d *Document) SetStampWidth(w float64) {
	d.width = w
}

// SetImageLimits bounds the images accepted by Stamp.
func (d *Document) SetImageLimits(l images.Limits) {
	d.limits = l
}

// SetLogger sets the logger used by Write.
func (d *Document) SetLogger(l *slog.Logger) {
	d.logger = l
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.doc.PageCount()
}

// Source returns the document as opened, or as last written.
func (d *Document) Source() *document.Document {
	return d.doc
}

// Stamp stages image data (PNG or JPEG) for role. The stamp is placed with
// At and written by Write.
func (d *Document) Stamp(role common.Role, data []byte) *StampBuilder {
	sb := &StampBuilder{
		doc:  d,
		role: role,
		data: data,
	}
	d.pending = append(d.pending, sb)
	return sb
}

func (d *Document) pipeline() *stamp.Pipeline {
	opts := stamp.DefaultOptions()
	opts.Width = d.width
	opts.CompressLevel = d.compressLevel
	opts.Logger = d.logger
	return stamp.New(opts)
}
