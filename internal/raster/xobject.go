package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	pdflib "github.com/digitorus/pdf"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
	xdraw "golang.org/x/image/draw"
)

var placeholder = color.RGBA{0xc0, 0xc0, 0xc0, 0xff}

func (r *renderer) drawXObject(name string) {
	xobj := r.resources.Key("XObject").Key(name)
	if xobj.Kind() != pdflib.Stream {
		return
	}

	switch xobj.Key("Subtype").Name() {
	case "Image":
		r.drawImage(xobj)
	case "Form":
		r.drawForm(xobj)
	}
}

func (r *renderer) drawForm(form pdflib.Value) {
	if r.depth >= maxFormDepth {
		return
	}

	saved, savedResources := r.gs, r.resources
	savedPath, savedClosed := r.path, r.closed
	r.depth++
	defer func() {
		r.gs, r.resources = saved, savedResources
		r.path, r.closed = savedPath, savedClosed
		r.depth--
	}()

	if m := form.Key("Matrix"); m.Kind() == pdflib.Array && m.Len() == 6 {
		var fm matrix
		for i := range fm {
			fm[i] = m.Index(i).Float64()
		}
		r.gs.ctm = fm.mul(r.gs.ctm)
	}
	if res := form.Key("Resources"); !res.IsNull() {
		r.resources = res
	}
	r.path = nil
	r.closed = nil

	r.run(form)
}

// drawImage maps the image onto the unit square of the current CTM.
func (r *renderer) drawImage(xobj pdflib.Value) {
	w := int(xobj.Key("Width").Int64())
	h := int(xobj.Key("Height").Int64())
	if w <= 0 || h <= 0 {
		return
	}

	// Image space: row 0 at the top of the unit square.
	unit := matrix{1 / float64(w), 0, 0, -1 / float64(h), 0, 1}
	m := unit.mul(r.gs.ctm).mul(r.device)

	src, err := decodeImage(xobj, w, h)
	if err != nil {
		r.fillImageBox(m, w, h)
		return
	}
	xdraw.BiLinear.Transform(r.dst, m.aff3(), src, image.Rect(0, 0, w, h), xdraw.Over, nil)
}

// fillImageBox paints the image footprint in the placeholder color.
func (r *renderer) fillImageBox(m matrix, w, h int) {
	saved := r.gs.fill
	r.gs.fill = placeholder
	corners := [][2]float64{{0, 0}, {float64(w), 0}, {float64(w), float64(h)}, {0, float64(h)}}
	sub := make([]point, 0, len(corners))
	for _, c := range corners {
		x, y := m.apply(c[0], c[1])
		sub = append(sub, point{x, y})
	}
	path, closed := r.path, r.closed
	r.path, r.closed = [][]point{sub}, []bool{true}
	r.fillPath()
	r.path, r.closed = path, closed
	r.gs.fill = saved
}

// decodeImage decodes 8-bit DeviceRGB or DeviceGray image data, applying a
// soft mask when present.
func decodeImage(xobj pdflib.Value, w, h int) (image.Image, error) {
	if bpc := xobj.Key("BitsPerComponent").Int64(); bpc != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", bpc)
	}

	var components int
	switch cs := xobj.Key("ColorSpace"); cs.Name() {
	case "DeviceRGB":
		components = 3
	case "DeviceGray":
		components = 1
	default:
		return nil, fmt.Errorf("unsupported color space %v", cs)
	}

	data, err := readAll(xobj)
	if err != nil {
		return nil, err
	}
	if len(data) < w*h*components {
		return nil, fmt.Errorf("short image data: %d bytes for %dx%d", len(data), w, h)
	}

	var alpha []byte
	if smask := xobj.Key("SMask"); smask.Kind() == pdflib.Stream {
		if alpha, err = readAll(smask); err != nil || len(alpha) < w*h {
			alpha = nil
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		px := img.Pix[i*4 : i*4+4]
		if components == 3 {
			copy(px, data[i*3:i*3+3])
		} else {
			px[0], px[1], px[2] = data[i], data[i], data[i]
		}
		px[3] = 255
		if alpha != nil {
			px[3] = alpha[i]
		}
	}
	return img, nil
}

func readAll(stream pdflib.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := ipdf.ReadStream(&buf, stream); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
