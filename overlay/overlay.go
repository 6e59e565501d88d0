// Package overlay positions field markers and stamp previews over a
// rendered page.
//
// Project is a pure function of fields, geometry and images. Store wraps it
// as a reducer that recomputes only when one of its inputs changes.
package overlay

import (
	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/images"
)

// DefaultMarkerSize is the marker size in pixels.
var DefaultMarkerSize = coords.Size{Width: 24, Height: 24}

// Images holds the signer image available for each role.
type Images map[common.Role]*images.Image

// Options configures projection.
type Options struct {
	MarkerSize coords.Size
	StampWidth float64
}

func (o Options) withDefaults() Options {
	if o.MarkerSize == (coords.Size{}) {
		o.MarkerSize = DefaultMarkerSize
	}
	if o.StampWidth <= 0 {
		o.StampWidth = common.StampWidth
	}
	return o
}

// Entry is the on-screen placement of one field.
type Entry struct {
	Field common.Field
	// Marker is centered on the field position.
	Marker coords.Rect
	// Stamp is where the composited stamp will appear. It is zero when
	// Image is nil.
	Stamp coords.Rect
	// Image is nil when the field's role has no image yet. Such entries
	// are not drawn.
	Image *images.Image
}

// Project returns an entry for every field on the geometry's page, in the
// order of fields.
func Project(fields []common.Field, g coords.Geometry, imgs Images, opts Options) ([]Entry, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	entries := make([]Entry, 0, len(fields))
	for _, f := range fields {
		if f.PageNumber != g.PageNumber {
			continue
		}

		marker, err := coords.ToScreenRect(f.Position, g, opts.MarkerSize)
		if err != nil {
			return nil, err
		}
		e := Entry{Field: f, Marker: marker}

		if img := imgs[f.Role]; img != nil {
			e.Image = img
			e.Stamp, err = coords.ToScreenStampRect(f.Position, g, img.StampSize(opts.StampWidth))
			if err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Visible returns the entries that have an image to draw.
func Visible(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Image != nil {
			out = append(out, e)
		}
	}
	return out
}
