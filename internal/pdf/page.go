// Package pdf contains helpers around github.com/digitorus/pdf for locating
// pages, resolving inherited page attributes and reading content streams.
package pdf

import (
	"fmt"

	pdflib "github.com/digitorus/pdf"
)

// Box is a page boundary rectangle: lower-left x, lower-left y, upper-right
// x, upper-right y in PDF points.
type Box [4]float64

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 {
	return abs(b[2] - b[0])
}

// Height returns the vertical extent of the box.
func (b Box) Height() float64 {
	return abs(b[3] - b[1])
}

// Origin returns the lower-left corner of the box.
func (b Box) Origin() (x, y float64) {
	return min(b[0], b[2]), min(b[1], b[3])
}

// letter is used when neither the page nor any ancestor declares a MediaBox.
var letter = Box{0, 0, 612, 792}

// FindPage returns the page dictionary for the 1-based page number n.
func FindPage(r *pdflib.Reader, n int) (pdflib.Value, error) {
	if r == nil {
		return pdflib.Value{}, fmt.Errorf("no reader available")
	}
	if count := r.NumPage(); n < 1 || n > count {
		return pdflib.Value{}, fmt.Errorf("page %d out of range (1-%d)", n, count)
	}

	page := r.Page(n)
	if page.V.IsNull() {
		return pdflib.Value{}, fmt.Errorf("page %d not found", n)
	}
	return page.V, nil
}

// Inherited looks up key on the page and then on each ancestor in the page
// tree, as PDF does for Resources, MediaBox, CropBox and Rotate.
func Inherited(page pdflib.Value, key string) pdflib.Value {
	// The depth limit guards against Parent cycles in damaged files.
	for depth := 0; depth < 64 && !page.IsNull(); depth++ {
		if v := page.Key(key); !v.IsNull() {
			return v
		}
		page = page.Key("Parent")
	}
	return pdflib.Value{}
}

// MediaBox returns the effective MediaBox of a page.
func MediaBox(page pdflib.Value) (Box, error) {
	v := Inherited(page, "MediaBox")
	if v.IsNull() {
		return letter, nil
	}
	if v.Kind() != pdflib.Array || v.Len() != 4 {
		return Box{}, fmt.Errorf("malformed MediaBox %v", v)
	}

	var box Box
	for i := range box {
		box[i] = v.Index(i).Float64()
	}
	if box.Width() == 0 || box.Height() == 0 {
		return Box{}, fmt.Errorf("empty MediaBox %v", box)
	}
	return box, nil
}

// Ref returns the object number and generation of an indirect value.
func Ref(v pdflib.Value) (id uint32, gen uint16) {
	ptr := v.GetPtr()
	return uint32(ptr.GetID()), uint16(ptr.GetGen())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
