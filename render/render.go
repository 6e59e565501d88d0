// Package render rasterizes document pages for display and reports the
// viewport geometry each raster was produced with.
package render

import (
	"context"
	"image"
	"log/slog"

	pdflib "github.com/digitorus/pdf"
	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
	"github.com/digitorus/pdfstamp/internal/raster"
)

// DefaultCacheEntries is the number of rasters kept by a Renderer.
const DefaultCacheEntries = 16

// Result is a rasterized page. Image is shared with the cache and must not
// be modified.
type Result struct {
	Image      *image.RGBA
	Geometry   coords.Geometry
	Digest     string
	Generation uint64
}

type rasterizeFunc func(ctx context.Context, page pdflib.Value, box ipdf.Box, width int) (*image.RGBA, error)

// Renderer rasterizes pages. It is safe for concurrent use.
type Renderer struct {
	cache     *cache
	logger    *slog.Logger
	rasterize rasterizeFunc
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCacheEntries bounds the result cache. Zero disables caching.
func WithCacheEntries(n int) Option {
	return func(r *Renderer) {
		r.cache = newCache(n)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = l
	}
}

// NewRenderer returns a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		cache:     newCache(DefaultCacheEntries),
		logger:    slog.Default(),
		rasterize: raster.Page,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Geometry returns the geometry Render would report for the page at width
// pixels, without rasterizing it.
func Geometry(doc *document.Document, page, width int) (coords.Geometry, error) {
	if doc == nil {
		return coords.Geometry{}, errNoDocument
	}
	if width <= 0 {
		return coords.Geometry{}, &common.InvalidDimensionError{Name: "display width", Value: float64(width)}
	}
	box, err := doc.PageBox(page)
	if err != nil {
		return coords.Geometry{}, err
	}
	g := coords.Geometry{
		PageNumber:      page,
		DisplayWidthPx:  float64(width),
		DisplayHeightPx: float64(raster.Height(box, width)),
		NativeWidthPt:   box.Width(),
		NativeHeightPt:  box.Height(),
	}
	return g, g.Validate()
}

// Render rasterizes the 1-based page of doc at width pixels. Failures are
// reported as *common.PageRenderError; they only concern that page.
func (r *Renderer) Render(ctx context.Context, doc *document.Document, page, width int) (Result, error) {
	fail := func(err error) (Result, error) {
		return Result{}, &common.PageRenderError{Page: page, Err: err}
	}

	if doc == nil {
		return fail(errNoDocument)
	}
	if width <= 0 {
		return fail(&common.InvalidDimensionError{Name: "display width", Value: float64(width)})
	}
	box, err := doc.PageBox(page)
	if err != nil {
		return fail(err)
	}

	key := cacheKey{digest: doc.Digest(), page: page, width: width}
	if res, ok := r.cache.get(key); ok {
		return res, nil
	}

	rdr, err := doc.NewReader()
	if err != nil {
		return fail(err)
	}
	pageValue, err := ipdf.FindPage(rdr, page)
	if err != nil {
		return fail(err)
	}

	img, err := r.rasterize(ctx, pageValue, box, width)
	if err != nil {
		return fail(err)
	}

	res := Result{
		Image: img,
		Geometry: coords.Geometry{
			PageNumber:      page,
			DisplayWidthPx:  float64(img.Bounds().Dx()),
			DisplayHeightPx: float64(img.Bounds().Dy()),
			NativeWidthPt:   box.Width(),
			NativeHeightPt:  box.Height(),
		},
		Digest: doc.Digest(),
	}
	r.cache.put(key, res)
	return res, nil
}
