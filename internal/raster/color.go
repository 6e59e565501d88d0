package raster

import (
	"image/color"

	pdflib "github.com/digitorus/pdf"
)

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

func gray(v float64) color.RGBA {
	c := channel(v)
	return color.RGBA{c, c, c, 255}
}

func rgb(r, g, b float64) color.RGBA {
	return color.RGBA{channel(r), channel(g), channel(b), 255}
}

func cmyk(c, m, y, k float64) color.RGBA {
	return rgb((1-c)*(1-k), (1-m)*(1-k), (1-y)*(1-k))
}

// byComponents interprets sc/scn operands by their count. Pattern names
// and other color spaces are ignored.
func byComponents(args []pdflib.Value) (color.RGBA, bool) {
	for _, a := range args {
		if k := a.Kind(); k != pdflib.Integer && k != pdflib.Real {
			return color.RGBA{}, false
		}
	}
	switch len(args) {
	case 1:
		return gray(args[0].Float64()), true
	case 3:
		return rgb(args[0].Float64(), args[1].Float64(), args[2].Float64()), true
	case 4:
		return cmyk(args[0].Float64(), args[1].Float64(), args[2].Float64(), args[3].Float64()), true
	default:
		return color.RGBA{}, false
	}
}
