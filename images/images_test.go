package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/digitorus/pdfstamp/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.NRGBA{0, 0, 128, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestNew_PNG(t *testing.T) {
	data := encodePNG(t, 200, 100)
	img, err := New(common.Staff, PNG, data, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, PNG, img.MIME)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 100, img.Height)
	assert.Equal(t, 2.0, img.AspectRatio())
	assert.Len(t, img.Hash, 64)

	size := img.StampSize(common.StampWidth)
	assert.Equal(t, 100.0, size.Width)
	assert.Equal(t, 50.0, size.Height)
}

func TestNew_JPEGWithAlias(t *testing.T) {
	img, err := New(common.Recipient, "image/jpg", encodeJPEG(t, 30, 10), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, JPEG, img.MIME)
}

func TestNew_DeclaredMismatch(t *testing.T) {
	_, err := New(common.Staff, JPEG, encodePNG(t, 10, 10), DefaultLimits())
	var unsupported *common.UnsupportedImageFormatError
	assert.True(t, errors.As(err, &unsupported))
}

func TestNew_RejectsGIF(t *testing.T) {
	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	_, err := New(common.Staff, "", gif, DefaultLimits())
	var unsupported *common.UnsupportedImageFormatError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "image/gif", unsupported.Format)
}

func TestNew_Limits(t *testing.T) {
	data := encodePNG(t, 50, 50)

	_, err := New(common.Staff, PNG, data, Limits{MaxBytes: 10})
	var tooLarge *common.ImageTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, "size", tooLarge.What)

	_, err = New(common.Staff, PNG, data, Limits{MaxPixels: 100})
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, "pixel count", tooLarge.What)
}

func TestFromDataURL(t *testing.T) {
	data := encodePNG(t, 4, 2)
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	img, err := FromDataURL(common.Recipient, url, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, common.Recipient, img.Role)
	assert.Equal(t, data, img.Data)

	_, err = FromDataURL(common.Recipient, "https://example.com/a.png", DefaultLimits())
	assert.Error(t, err)

	_, err = FromDataURL(common.Recipient, "data:image/png,abc", DefaultLimits())
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	img, mime, err := Decode(encodeJPEG(t, 8, 4))
	require.NoError(t, err)
	assert.Equal(t, JPEG, mime)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, _, err = Decode([]byte("not an image"))
	var unsupported *common.UnsupportedImageFormatError
	assert.True(t, errors.As(err, &unsupported))
}

func TestStampSize_DegenerateDimensions(t *testing.T) {
	assert.Equal(t, 100.0, StampSize(100, 0, 10).Width)
	assert.Equal(t, 0.0, StampSize(100, 0, 10).Height)
}

func TestValidate(t *testing.T) {
	mime, err := Validate(encodeJPEG(t, 4, 4), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, JPEG, mime)

	_, err = Validate([]byte("%PDF-1.7"), DefaultLimits())
	var unsupported *common.UnsupportedImageFormatError
	assert.ErrorAs(t, err, &unsupported)
}
