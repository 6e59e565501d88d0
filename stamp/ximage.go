package stamp

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/digitorus/pdfstamp/images"
)

// addImage writes img as an image XObject and returns its object number.
// Opaque JPEG data is embedded as is; everything else is re-encoded as
// 8-bit RGB with an optional soft mask for transparency.
func (w *writer) addImage(img image.Image, mime images.MIME, raw []byte) (uint32, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	if mime == images.JPEG {
		colorSpace := ""
		switch img.(type) {
		case *image.YCbCr:
			colorSpace = "/DeviceRGB"
		case *image.Gray:
			colorSpace = "/DeviceGray"
		}
		if colorSpace != "" {
			dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace %s /BitsPerComponent 8 /Filter /DCTDecode ",
				width, height, colorSpace)
			return w.addStream(dict, raw)
		}
	}

	var rgbBuf, alphaBuf bytes.Buffer
	var rgbWriter, alphaWriter io.Writer = &rgbBuf, &alphaBuf
	var zlibRGB, zlibAlpha *zlib.Writer
	useCompression := w.compressLevel != zlib.NoCompression

	if useCompression {
		var err error
		if zlibRGB, err = zlib.NewWriterLevel(&rgbBuf, w.compressLevel); err != nil {
			return 0, fmt.Errorf("invalid compression level %d: %w", w.compressLevel, err)
		}
		zlibAlpha, _ = zlib.NewWriterLevel(&alphaBuf, w.compressLevel)
		rgbWriter, alphaWriter = zlibRGB, zlibAlpha
	}

	hasAlpha := false
	row := make([]byte, 0, width*3)
	alphaRow := make([]byte, 0, width)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row, alphaRow = row[:0], alphaRow[:0]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < 255 {
				hasAlpha = true
			}
			row = append(row, c.R, c.G, c.B)
			alphaRow = append(alphaRow, c.A)
		}
		if _, err := rgbWriter.Write(row); err != nil {
			return 0, err
		}
		if _, err := alphaWriter.Write(alphaRow); err != nil {
			return 0, err
		}
	}

	filter := ""
	if useCompression {
		if err := zlibRGB.Close(); err != nil {
			return 0, err
		}
		if err := zlibAlpha.Close(); err != nil {
			return 0, err
		}
		filter = "/Filter /FlateDecode "
	}

	var smask string
	if hasAlpha {
		dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 %s",
			width, height, filter)
		smaskID, err := w.addStream(dict, alphaBuf.Bytes())
		if err != nil {
			return 0, fmt.Errorf("failed to add soft mask: %w", err)
		}
		smask = fmt.Sprintf("/SMask %d 0 R ", smaskID)
	}

	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 %s%s",
		width, height, smask, filter)
	return w.addStream(dict, rgbBuf.Bytes())
}
