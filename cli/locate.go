package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/render"
	"github.com/digitorus/pdfstamp/stamp"
	"github.com/spf13/cobra"
)

type locateOptions struct {
	page   int
	width  int
	click  string
	strict bool
	image  string
}

func newLocateCmd() *cobra.Command {
	var o locateOptions
	cmd := &cobra.Command{
		Use:   "locate <input.pdf> --click x,y",
		Short: "Map a click on a rendered page to field and PDF coordinates",
		Long: `Maps a pixel position on a page rendered at --width pixels to the
normalized field position and to the PDF point, in the page's own
coordinates, where a stamp placed there would have its lower-left corner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	cmd.Flags().IntVarP(&o.page, "page", "p", 1, "Page number (1-based)")
	cmd.Flags().IntVarP(&o.width, "width", "w", 0, "Display width in pixels (default from config)")
	cmd.Flags().StringVar(&o.click, "click", "", "Click position in pixels as x,y")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "Fail on clicks outside the page instead of clamping")
	cmd.Flags().StringVar(&o.image, "image", "", "Signer image used for the stamp aspect ratio")
	_ = cmd.MarkFlagRequired("click")
	return cmd
}

func (o *locateOptions) run(cmd *cobra.Command, input string) error {
	x, y, err := parsePair(o.click)
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
	g, err := render.Geometry(doc, o.page, width)
	if err != nil {
		return err
	}

	from := coords.FromScreenClick
	if o.strict {
		from = coords.FromScreenClickStrict
	}
	n, err := from(x, y, g)
	if err != nil {
		return err
	}

	// Without an image the stamp is assumed square.
	px, py := 1, 1
	if o.image != "" {
		img, err := readImage(common.Staff, o.image)
		if err != nil {
			return err
		}
		px, py = img.Width, img.Height
	}
	opts := cfg.StampOptions()
	opts.Logger = logger
	field := common.Field{Role: common.Staff, PageNumber: o.page, Position: n}
	at, err := stamp.New(opts).Place(doc, field, px, py)
	if err != nil {
		return err
	}

	cmd.Printf("Geometry:   %gx%g px for %gx%g pt\n", g.DisplayWidthPx, g.DisplayHeightPx, g.NativeWidthPt, g.NativeHeightPt)
	cmd.Printf("Normalized: %.4f,%.4f\n", n.X, n.Y)
	cmd.Printf("Stamp:      %gx%g pt at %.2f,%.2f\n", at.Size.Width, at.Size.Height, at.Origin.X, at.Origin.Y)
	return nil
}

func parsePair(s string) (float64, float64, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
