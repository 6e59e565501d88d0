package pdfstamp_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/digitorus/pdfstamp"
	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
	"github.com/digitorus/pdfstamp/internal/testpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signature(w, h int) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetGray(x, h/2, color.Gray{})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func content(t *testing.T, data []byte, page int) string {
	t.Helper()
	doc, err := document.Open(data)
	require.NoError(t, err)
	p, err := ipdf.FindPage(doc.Reader(), page)
	require.NoError(t, err)
	c, err := ipdf.ReadContent(p)
	require.NoError(t, err)
	return string(c)
}

func TestWrite(t *testing.T) {
	original := testpdf.Letter(2)
	doc, err := pdfstamp.Open(original)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())

	// Staged out of order: staff is still embedded first.
	doc.Stamp(common.Recipient, signature(200, 100)).At(2, 0.6, 0.8)
	doc.Stamp(common.Staff, signature(100, 40)).At(2, 0.1, 0.8)

	var out bytes.Buffer
	res, err := doc.Write(&out)
	require.NoError(t, err)

	require.Len(t, res.Stamps, 2)
	assert.Equal(t, common.Staff, res.Stamps[0].Role)
	assert.Equal(t, common.Recipient, res.Stamps[1].Role)
	assert.Equal(t, 2, res.Revision)
	assert.Equal(t, document.Digest(out.Bytes()), res.Digest)
	assert.True(t, bytes.HasPrefix(out.Bytes(), original), "incremental update keeps the original bytes")

	c := content(t, out.Bytes(), 2)
	assert.Equal(t, 1, strings.Count(c, "/PdfStampIm1 Do"))
	assert.Equal(t, 1, strings.Count(c, "/PdfStampIm2 Do"))
	assert.NotContains(t, content(t, out.Bytes(), 1), "PdfStampIm")
}

func TestWrite_Convention(t *testing.T) {
	doc, err := pdfstamp.Open(testpdf.Letter(1))
	require.NoError(t, err)
	sb := doc.Stamp(common.Staff, signature(100, 100)).At(1, 0.25, 0.75).Convention(coords.BottomLeft)
	assert.Equal(t, common.Staff, sb.Role())

	var out bytes.Buffer
	res, err := doc.Write(&out)
	require.NoError(t, err)
	require.Len(t, res.Stamps, 1)
	assert.InDelta(t, 0.25, res.Stamps[0].Position.X, 1e-9)
	assert.InDelta(t, 0.25, res.Stamps[0].Position.Y, 1e-9)
}

func TestWrite_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stage func(d *pdfstamp.Document)
	}{
		{"nothing staged", func(d *pdfstamp.Document) {}},
		{"no position", func(d *pdfstamp.Document) {
			d.Stamp(common.Staff, signature(10, 10))
		}},
		{"page out of range", func(d *pdfstamp.Document) {
			d.Stamp(common.Staff, signature(10, 10)).At(2, 0.5, 0.5)
		}},
		{"duplicate role", func(d *pdfstamp.Document) {
			d.Stamp(common.Staff, signature(10, 10)).At(1, 0.5, 0.5)
			d.Stamp(common.Staff, signature(10, 10)).At(1, 0.2, 0.2)
		}},
		{"unsupported image", func(d *pdfstamp.Document) {
			d.Stamp(common.Staff, []byte("GIF89a")).At(1, 0.5, 0.5)
		}},
		{"position outside page", func(d *pdfstamp.Document) {
			d.Stamp(common.Staff, signature(10, 10)).At(1, 1.5, 0.5)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := pdfstamp.Open(testpdf.Letter(1))
			require.NoError(t, err)
			tt.stage(doc)

			var out bytes.Buffer
			_, err = doc.Write(&out)
			assert.Error(t, err)
			assert.Zero(t, out.Len())
			assert.Equal(t, 0, doc.Source().Revision())
		})
	}
}

func TestWrite_Twice(t *testing.T) {
	doc, err := pdfstamp.Open(testpdf.Letter(1))
	require.NoError(t, err)
	doc.SetStampWidth(50)

	doc.Stamp(common.Staff, signature(10, 10)).At(1, 0.1, 0.1)
	var first bytes.Buffer
	_, err = doc.Write(&first)
	require.NoError(t, err)

	doc.Stamp(common.Recipient, signature(10, 10)).At(1, 0.5, 0.5)
	var second bytes.Buffer
	res, err := doc.Write(&second)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Revision)
	assert.True(t, bytes.HasPrefix(second.Bytes(), first.Bytes()))
}

func TestOpen_Invalid(t *testing.T) {
	_, err := pdfstamp.Open([]byte("not a pdf"))
	assert.Error(t, err)
	_, err = pdfstamp.OpenFile("testdata/missing.pdf")
	assert.Error(t, err)
}
