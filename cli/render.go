package cli

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/images"
	"github.com/digitorus/pdfstamp/overlay"
	"github.com/digitorus/pdfstamp/render"
	"github.com/spf13/cobra"
	xdraw "golang.org/x/image/draw"
)

type renderOptions struct {
	page       int
	width      int
	fields     []string
	images     []string
	convention string
}

func newRenderCmd() *cobra.Command {
	var o renderOptions
	cmd := &cobra.Command{
		Use:   "render <input.pdf> <output.png>",
		Short: "Rasterize a page, optionally with field markers and stamp previews",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0], args[1])
		},
	}
	cmd.Flags().IntVarP(&o.page, "page", "p", 1, "Page number (1-based)")
	cmd.Flags().IntVarP(&o.width, "width", "w", 0, "Display width in pixels (default from config)")
	cmd.Flags().StringArrayVar(&o.fields, "field", nil, "Field as role:page:x:y (repeatable)")
	cmd.Flags().StringArrayVar(&o.images, "image", nil, "Signer image as role=path (repeatable)")
	cmd.Flags().StringVar(&o.convention, "convention", "top-left", "Origin of field coordinates (top-left, bottom-left)")
	return cmd
}

var markerColor = color.RGBA{R: 0xd0, G: 0x20, B: 0x20, A: 0xff}

func (o *renderOptions) run(cmd *cobra.Command, input, output string) error {
	conv, err := coords.ParseConvention(o.convention)
	if err != nil {
		return err
	}
	doc, err := document.OpenFile(input)
	if err != nil {
		return err
	}
	width := o.width
	if width <= 0 {
		width = cfg.Render.DefaultWidthPx
	}

	r := render.NewRenderer(render.WithCacheEntries(cfg.Render.CacheEntries), render.WithLogger(logger))
	res, err := r.Render(cmd.Context(), doc, o.page, width)
	if err != nil {
		return err
	}

	page := res.Image
	if len(o.fields) > 0 {
		reg, err := buildRegistry(o.fields, doc.PageCount(), conv)
		if err != nil {
			return err
		}
		imgs, err := readImages(o.images)
		if err != nil {
			return err
		}
		entries, err := overlay.Project(reg.Fields(), res.Geometry, overlay.Images(imgs), overlay.Options{StampWidth: cfg.Stamp.WidthPt})
		if err != nil {
			return err
		}
		if page, err = drawOverlay(res.Image, entries); err != nil {
			return err
		}
	}

	out, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(out, page); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	logger.Info("page rendered", "page", o.page, "width", width, "digest", res.Digest)
	cmd.Printf("%s: page %d at %gx%g px\n", output, o.page, res.Geometry.DisplayWidthPx, res.Geometry.DisplayHeightPx)
	return nil
}

// drawOverlay returns a copy of page with stamp previews and then field
// markers painted on it. page may be shared with the render cache and is
// left untouched.
func drawOverlay(page *image.RGBA, entries []overlay.Entry) (*image.RGBA, error) {
	dst := image.NewRGBA(page.Bounds())
	draw.Draw(dst, dst.Bounds(), page, page.Bounds().Min, draw.Src)

	for _, e := range overlay.Visible(entries) {
		src, _, err := images.Decode(e.Image.Data)
		if err != nil {
			return nil, err
		}
		xdraw.BiLinear.Scale(dst, pixelRect(e.Stamp), src, src.Bounds(), draw.Over, nil)
	}
	for _, e := range entries {
		outline(dst, pixelRect(e.Marker), 2, markerColor)
	}
	return dst, nil
}

func pixelRect(r coords.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(r.Left)),
		int(math.Round(r.Top)),
		int(math.Round(r.Left+r.Width)),
		int(math.Round(r.Top+r.Height)),
	)
}

func outline(dst draw.Image, r image.Rectangle, w int, c color.Color) {
	src := image.NewUniform(c)
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y),
		image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(dst, edge.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}
