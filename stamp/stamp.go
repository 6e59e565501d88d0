// Package stamp composites signer images onto PDF pages.
//
// Embedding appends an incremental update to the document: the image as an
// XObject, a new version of the target page that draws it, and a
// cross-reference section in the style of the original file. The input
// Document is never modified; every call returns a new revision.
package stamp

import (
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/images"
)

// Options configures a Pipeline.
type Options struct {
	// Width is the stamp width in PDF points.
	Width float64
	// CompressLevel is the zlib level for re-encoded images.
	CompressLevel int
	// UpdateInfo refreshes /ModDate (and /Producer) on every embed.
	UpdateInfo bool
	Producer   string

	Now    func() time.Time
	Logger *slog.Logger
}

// DefaultOptions returns the options pdfstamp uses unless configured
// otherwise.
func DefaultOptions() Options {
	return Options{
		Width:         common.StampWidth,
		CompressLevel: zlib.DefaultCompression,
		UpdateInfo:    true,
		Producer:      "pdfstamp",
	}
}

// Pipeline embeds signer images into documents.
type Pipeline struct {
	opts Options
}

// New returns a Pipeline. A zero Width means common.StampWidth.
func New(opts Options) *Pipeline {
	if opts.Width <= 0 {
		opts.Width = common.StampWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{opts: opts}
}

// Placement describes where a stamp lands on its page, in PDF points.
type Placement struct {
	Page   int
	Origin coords.Point
	Size   coords.Size
}

// Place computes the placement of a stamp for field without writing it.
// The image is only used for its aspect ratio.
func (p *Pipeline) Place(doc *document.Document, field common.Field, width, height int) (Placement, error) {
	if idx := field.PageIndex(); idx < 0 || idx >= doc.PageCount() {
		return Placement{}, &common.PageIndexError{Index: idx, PageCount: doc.PageCount()}
	}
	box, err := doc.PageBox(field.PageNumber)
	if err != nil {
		return Placement{}, err
	}

	size := images.StampSize(p.opts.Width, width, height)
	at, err := coords.ToPDFPoint(field.Position, coords.Size{Width: box.Width(), Height: box.Height()}, size)
	if err != nil {
		return Placement{}, err
	}
	ox, oy := box.Origin()
	at.X += ox
	at.Y += oy

	return Placement{Page: field.PageNumber, Origin: at, Size: size}, nil
}

// Embed draws img at field on doc and returns the resulting revision.
//
// It fails with UnsupportedImageFormatError for anything but PNG or JPEG
// and with PageIndexError when the field's page is not in doc. On error
// doc is unchanged and can be used for a retry.
func (p *Pipeline) Embed(ctx context.Context, doc *document.Document, field common.Field, img *images.Image) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("no document")
	}
	if img == nil || len(img.Data) == 0 {
		return nil, errors.New("no image data")
	}

	decoded, mime, err := images.Decode(img.Data)
	if err != nil {
		return nil, err
	}

	bounds := decoded.Bounds()
	placement, err := p.Place(doc, field, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	w, err := newWriter(doc, p.opts.CompressLevel)
	if err != nil {
		return nil, err
	}

	imgID, err := w.addImage(decoded, mime, img.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to add image: %w", err)
	}
	if err := w.stampPage(placement.Page, imgID, placement.Origin, placement.Size); err != nil {
		return nil, fmt.Errorf("failed to update page %d: %w", placement.Page, err)
	}
	if p.opts.UpdateInfo {
		if err := w.updateInfo(p.opts.Producer, p.opts.Now()); err != nil {
			return nil, fmt.Errorf("failed to update info: %w", err)
		}
	}

	out, err := w.finish()
	if err != nil {
		return nil, err
	}

	next, err := doc.Next(out)
	if err != nil {
		return nil, fmt.Errorf("composited document does not parse: %w", err)
	}
	if next.PageCount() != doc.PageCount() {
		return nil, fmt.Errorf("page count changed from %d to %d", doc.PageCount(), next.PageCount())
	}

	p.opts.Logger.Debug("stamp embedded",
		slog.String("role", field.Role.String()),
		slog.Int("page", placement.Page),
		slog.Int("bytes", next.Len()),
		slog.String("digest", next.Digest()))

	return next, nil
}
