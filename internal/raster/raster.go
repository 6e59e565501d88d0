// Package raster rasterizes PDF pages for on-screen previews.
//
// It covers the part of the imaging model a placement preview needs: paths,
// fills and strokes in device colors, images and form XObjects. Text is not
// drawn, and images in formats the PDF reader cannot decode are shown as a
// gray box.
package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	pdflib "github.com/digitorus/pdf"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
	"golang.org/x/image/vector"
)

const maxFormDepth = 8

// Height returns the pixel height of a page rendered at width pixels.
func Height(box ipdf.Box, width int) int {
	if box.Width() <= 0 {
		return 0
	}
	return int(math.Round(float64(width) * box.Height() / box.Width()))
}

// Page renders a page at width pixels. The height follows from the MediaBox
// aspect ratio.
func Page(ctx context.Context, page pdflib.Value, box ipdf.Box, width int) (img *image.RGBA, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if width <= 0 {
		return nil, fmt.Errorf("invalid width %d", width)
	}
	height := Height(box, width)
	if height <= 0 {
		return nil, fmt.Errorf("invalid page box %v", box)
	}

	r := newRenderer(ctx, width, height, box)

	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(abort); ok {
				img, err = nil, e.err
				return
			}
			img, err = nil, fmt.Errorf("malformed content: %v", p)
		}
	}()

	r.resources = ipdf.Inherited(page, "Resources")
	for _, stream := range ipdf.ContentStreams(page) {
		r.run(stream)
	}
	return r.dst, nil
}

// abort carries a context error out of the content interpreter.
type abort struct{ err error }

type gstate struct {
	ctm       matrix
	fill      color.RGBA
	stroke    color.RGBA
	lineWidth float64
}

type renderer struct {
	ctx    context.Context
	dst    *image.RGBA
	raster *vector.Rasterizer
	device matrix

	gs        gstate
	stack     []gstate
	resources pdflib.Value
	depth     int
	ops       int

	// Current path in device space, one slice of points per subpath.
	path   [][]point
	closed []bool
}

type point struct{ x, y float64 }

func newRenderer(ctx context.Context, width, height int, box ipdf.Box) *renderer {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	llx, lly := box.Origin()
	s := float64(width) / box.Width()

	return &renderer{
		ctx:    ctx,
		dst:    dst,
		raster: vector.NewRasterizer(width, height),
		device: matrix{s, 0, 0, -s, -llx * s, float64(height) + lly*s},
		gs: gstate{
			ctm:       identity,
			fill:      color.RGBA{A: 255},
			stroke:    color.RGBA{A: 255},
			lineWidth: 1,
		},
	}
}

func (r *renderer) run(stream pdflib.Value) {
	for _, f := range ipdf.Filters(stream) {
		if f != "FlateDecode" {
			panic(fmt.Errorf("unsupported content filter %s", f))
		}
	}
	pdflib.Interpret(stream, r.op)
}

func (r *renderer) op(stk *pdflib.Stack, op string) {
	r.ops++
	if r.ops%512 == 0 {
		if err := r.ctx.Err(); err != nil {
			panic(abort{err})
		}
	}

	args := make([]pdflib.Value, stk.Len())
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = stk.Pop()
	}
	num := func(i int) float64 {
		if i < len(args) {
			return args[i].Float64()
		}
		return 0
	}

	switch op {
	case "q":
		r.stack = append(r.stack, r.gs)
	case "Q":
		if n := len(r.stack); n > 0 {
			r.gs = r.stack[n-1]
			r.stack = r.stack[:n-1]
		}
	case "cm":
		if len(args) == 6 {
			m := matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
			r.gs.ctm = m.mul(r.gs.ctm)
		}
	case "w":
		r.gs.lineWidth = num(0)

	case "m":
		r.moveTo(num(0), num(1))
	case "l":
		r.lineTo(num(0), num(1))
	case "c":
		r.curveTo(num(0), num(1), num(2), num(3), num(4), num(5))
	case "v":
		if p, ok := r.currentUser(); ok {
			r.curveTo(p.x, p.y, num(0), num(1), num(2), num(3))
		}
	case "y":
		r.curveTo(num(0), num(1), num(2), num(3), num(2), num(3))
	case "h":
		r.closePath()
	case "re":
		x, y, w, h := num(0), num(1), num(2), num(3)
		r.moveTo(x, y)
		r.lineTo(x+w, y)
		r.lineTo(x+w, y+h)
		r.lineTo(x, y+h)
		r.closePath()

	case "f", "F", "f*":
		r.fillPath()
		r.endPath()
	case "S":
		r.strokePath()
		r.endPath()
	case "s":
		r.closePath()
		r.strokePath()
		r.endPath()
	case "B", "B*":
		r.fillPath()
		r.strokePath()
		r.endPath()
	case "b", "b*":
		r.closePath()
		r.fillPath()
		r.strokePath()
		r.endPath()
	case "n":
		r.endPath()

	case "g":
		r.gs.fill = gray(num(0))
	case "G":
		r.gs.stroke = gray(num(0))
	case "rg":
		r.gs.fill = rgb(num(0), num(1), num(2))
	case "RG":
		r.gs.stroke = rgb(num(0), num(1), num(2))
	case "k":
		r.gs.fill = cmyk(num(0), num(1), num(2), num(3))
	case "K":
		r.gs.stroke = cmyk(num(0), num(1), num(2), num(3))
	case "sc", "scn":
		if c, ok := byComponents(args); ok {
			r.gs.fill = c
		}
	case "SC", "SCN":
		if c, ok := byComponents(args); ok {
			r.gs.stroke = c
		}

	case "Do":
		if len(args) == 1 {
			r.drawXObject(args[0].Name())
		}
	}
}

// currentUser returns the current point in user space.
func (r *renderer) currentUser() (point, bool) {
	if len(r.path) == 0 || len(r.path[len(r.path)-1]) == 0 {
		return point{}, false
	}
	p := r.path[len(r.path)-1]
	dev := p[len(p)-1]
	inv, ok := r.toDevice().invert()
	if !ok {
		return point{}, false
	}
	x, y := inv.apply(dev.x, dev.y)
	return point{x, y}, true
}

func (r *renderer) toDevice() matrix {
	return r.gs.ctm.mul(r.device)
}

func (r *renderer) moveTo(x, y float64) {
	dx, dy := r.toDevice().apply(x, y)
	r.path = append(r.path, []point{{dx, dy}})
	r.closed = append(r.closed, false)
}

func (r *renderer) lineTo(x, y float64) {
	if len(r.path) == 0 {
		r.moveTo(x, y)
		return
	}
	dx, dy := r.toDevice().apply(x, y)
	i := len(r.path) - 1
	r.path[i] = append(r.path[i], point{dx, dy})
}

const curveSteps = 16

func (r *renderer) curveTo(x1, y1, x2, y2, x3, y3 float64) {
	if len(r.path) == 0 {
		return
	}
	m := r.toDevice()
	i := len(r.path) - 1
	p0 := r.path[i][len(r.path[i])-1]
	ax, ay := m.apply(x1, y1)
	bx, by := m.apply(x2, y2)
	cx, cy := m.apply(x3, y3)
	for step := 1; step <= curveSteps; step++ {
		t := float64(step) / curveSteps
		u := 1 - t
		x := u*u*u*p0.x + 3*u*u*t*ax + 3*u*t*t*bx + t*t*t*cx
		y := u*u*u*p0.y + 3*u*u*t*ay + 3*u*t*t*by + t*t*t*cy
		r.path[i] = append(r.path[i], point{x, y})
	}
}

func (r *renderer) closePath() {
	if n := len(r.closed); n > 0 {
		r.closed[n-1] = true
	}
}

func (r *renderer) endPath() {
	r.path = r.path[:0]
	r.closed = r.closed[:0]
}

func (r *renderer) fillPath() {
	b := r.dst.Bounds()
	r.raster.Reset(b.Dx(), b.Dy())
	drawn := false
	for _, sub := range r.path {
		if len(sub) < 3 {
			continue
		}
		r.raster.MoveTo(float32(sub[0].x), float32(sub[0].y))
		for _, p := range sub[1:] {
			r.raster.LineTo(float32(p.x), float32(p.y))
		}
		r.raster.ClosePath()
		drawn = true
	}
	if drawn {
		r.raster.Draw(r.dst, b, image.NewUniform(r.gs.fill), image.Point{})
	}
}

// strokePath outlines every segment with a quad of the line width. Joins
// and caps are not drawn.
func (r *renderer) strokePath() {
	b := r.dst.Bounds()
	r.raster.Reset(b.Dx(), b.Dy())

	hw := r.gs.lineWidth * r.toDevice().scale() / 2
	if hw < 0.5 {
		hw = 0.5
	}

	drawn := false
	for i, sub := range r.path {
		pts := sub
		if r.closed[i] && len(sub) > 1 {
			pts = append(pts[:len(pts):len(pts)], sub[0])
		}
		for j := 1; j < len(pts); j++ {
			p, q := pts[j-1], pts[j]
			dx, dy := q.x-p.x, q.y-p.y
			l := math.Hypot(dx, dy)
			if l == 0 {
				continue
			}
			nx, ny := -dy/l*hw, dx/l*hw
			r.raster.MoveTo(float32(p.x+nx), float32(p.y+ny))
			r.raster.LineTo(float32(q.x+nx), float32(q.y+ny))
			r.raster.LineTo(float32(q.x-nx), float32(q.y-ny))
			r.raster.LineTo(float32(p.x-nx), float32(p.y-ny))
			r.raster.ClosePath()
			drawn = true
		}
	}
	if drawn {
		r.raster.Draw(r.dst, b, image.NewUniform(r.gs.stroke), image.Point{})
	}
}
