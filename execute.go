package pdfstamp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/fields"
	"github.com/digitorus/pdfstamp/images"
)

// Result describes a written document.
type Result struct {
	// Stamps lists the fields that were stamped, in embedding order.
	Stamps []common.Field
	// Revision counts the incremental updates since the document was opened.
	Revision int
	Digest   string
}

// Write embeds every staged stamp and writes the resulting document to
// output. Stamps are embedded staff first, each on top of the previous
// result. On error nothing is written and the staged stamps are kept.
func (d *Document) Write(output io.Writer) (*Result, error) {
	return d.WriteContext(context.Background(), output)
}

// WriteContext is Write with a context that cancels embedding.
func (d *Document) WriteContext(ctx context.Context, output io.Writer) (*Result, error) {
	if len(d.pending) == 0 {
		return nil, errors.New("no stamps staged")
	}

	reg := fields.NewRegistry(d.doc.PageCount())
	imgs := make(map[common.Role]*images.Image, len(d.pending))
	for _, sb := range d.pending {
		if !sb.placed {
			return nil, fmt.Errorf("%s stamp has no position", sb.role)
		}
		if _, err := reg.AddField(sb.role, sb.page, sb.position()); err != nil {
			return nil, err
		}
		img, err := images.New(sb.role, "", sb.data, d.limits)
		if err != nil {
			return nil, fmt.Errorf("%s stamp: %w", sb.role, err)
		}
		imgs[sb.role] = img
	}

	pipeline := d.pipeline()
	result := &Result{}
	doc := d.doc
	for _, role := range common.RequiredRoles {
		field, ok := reg.ByRole(role)
		if !ok {
			continue
		}
		next, err := pipeline.Embed(ctx, doc, field, imgs[role])
		if err != nil {
			return nil, &common.CompositeError{Role: role, Err: err}
		}
		doc = next
		result.Stamps = append(result.Stamps, field)
	}

	if _, err := output.Write(doc.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	d.doc = doc
	d.pending = nil
	result.Revision = doc.Revision()
	result.Digest = doc.Digest()
	return result, nil
}
