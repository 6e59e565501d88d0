// Package images provides the signer images that are composited onto a page.
//
// Images arrive either as a canvas export or as an upload. They are validated
// at that boundary (size, MIME type, dimensions) and again by the compositing
// pipeline, which only ever accepts PNG and JPEG.
package images

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG format
	_ "image/png"  // register PNG format
	"strings"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"golang.org/x/crypto/blake2b"
)

// MIME is an image media type.
type MIME string

const (
	PNG  MIME = "image/png"
	JPEG MIME = "image/jpeg"
)

// Limits bounds what the boundary accepts.
type Limits struct {
	MaxBytes  int64
	MaxPixels int64
}

// DefaultLimits returns 5 MiB and 25 megapixels.
func DefaultLimits() Limits {
	return Limits{MaxBytes: 5 << 20, MaxPixels: 25_000_000}
}

// Image is a signer image held only long enough to composite it.
type Image struct {
	Role   common.Role
	MIME   MIME
	Data   []byte // Raw image data (JPEG or PNG)
	Hash   string // BLAKE2b-256 of Data
	Width  int
	Height int
}

// New validates data against limits and returns an Image for role. If
// declared is non-empty it must agree with the sniffed format.
func New(role common.Role, declared MIME, data []byte, limits Limits) (*Image, error) {
	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		return nil, &common.ImageTooLargeError{What: "size", Size: int64(len(data)), Limit: limits.MaxBytes}
	}

	cfg, mime, err := DecodeConfig(data)
	if err != nil {
		return nil, err
	}
	if declared != "" && normalize(declared) != mime {
		return nil, &common.UnsupportedImageFormatError{Format: string(declared)}
	}

	pixels := int64(cfg.Width) * int64(cfg.Height)
	if limits.MaxPixels > 0 && pixels > limits.MaxPixels {
		return nil, &common.ImageTooLargeError{What: "pixel count", Size: pixels, Limit: limits.MaxPixels}
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("image has empty dimensions %dx%d", cfg.Width, cfg.Height)
	}

	return &Image{
		Role:   role,
		MIME:   mime,
		Data:   data,
		Hash:   Hash(data),
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// Validate checks data against limits without keeping it and returns the
// sniffed type.
func Validate(data []byte, limits Limits) (MIME, error) {
	img, err := New(0, "", data, limits)
	if err != nil {
		return "", err
	}
	return img.MIME, nil
}

// FromDataURL accepts a canvas export such as "data:image/png;base64,...".
func FromDataURL(role common.Role, url string, limits Limits) (*Image, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	mediaType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return New(role, MIME(mediaType), data, limits)
}

// DecodeConfig sniffs the format of data and returns its dimensions. Any
// format other than PNG or JPEG fails with an UnsupportedImageFormatError.
func DecodeConfig(data []byte) (image.Config, MIME, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", &common.UnsupportedImageFormatError{Format: sniffName(data)}
	}
	mime, err := fromFormat(format)
	if err != nil {
		return image.Config{}, "", err
	}
	return cfg, mime, nil
}

// Decode fully decodes data, accepting only PNG and JPEG.
func Decode(data []byte) (image.Image, MIME, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if _, _, cfgErr := DecodeConfig(data); cfgErr != nil {
			return nil, "", cfgErr
		}
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	mime, err := fromFormat(format)
	if err != nil {
		return nil, "", err
	}
	return img, mime, nil
}

// AspectRatio returns width divided by height.
func (i *Image) AspectRatio() float64 {
	return float64(i.Width) / float64(i.Height)
}

// StampSize returns the stamp footprint in points for a stamp of the given
// width: the height follows the image aspect ratio.
func (i *Image) StampSize(width float64) coords.Size {
	return StampSize(width, i.Width, i.Height)
}

// StampSize computes a stamp footprint from pixel dimensions.
func StampSize(width float64, px, py int) coords.Size {
	if px <= 0 || py <= 0 {
		return coords.Size{Width: width}
	}
	return coords.Size{Width: width, Height: width * float64(py) / float64(px)}
}

// Hash returns the hex BLAKE2b-256 digest of data.
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func fromFormat(format string) (MIME, error) {
	switch format {
	case "png":
		return PNG, nil
	case "jpeg":
		return JPEG, nil
	default:
		return "", &common.UnsupportedImageFormatError{Format: "image/" + format}
	}
}

func normalize(m MIME) MIME {
	s := strings.ToLower(strings.TrimSpace(string(m)))
	if s == "image/jpg" || s == "image/pjpeg" {
		return JPEG
	}
	return MIME(s)
}

func sniffName(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case bytes.HasPrefix(data, []byte("RIFF")):
		return "image/webp"
	default:
		return ""
	}
}
