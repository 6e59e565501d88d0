package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/images"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
	"github.com/digitorus/pdfstamp/internal/testpdf"
	"github.com/digitorus/pdfstamp/overlay"
	"github.com/digitorus/pdfstamp/render"
	"github.com/digitorus/pdfstamp/stamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pageContent(t *testing.T, doc *document.Document, n int) string {
	t.Helper()
	page, err := ipdf.FindPage(doc.Reader(), n)
	require.NoError(t, err)
	data, err := ipdf.ReadContent(page)
	require.NoError(t, err)
	return string(data)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pdfstamp version dev")
	assert.Contains(t, out, "100pt wide")
}

func TestInfoCmd(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.pdf", testpdf.Letter(2))

	out, err := execute(t, "info", in)
	require.NoError(t, err)
	assert.Contains(t, out, "Pages:  2")
	assert.Contains(t, out, "612 x 792 pt")

	out, err = execute(t, "info", "--json", in)
	require.NoError(t, err)
	var info documentInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Len(t, info.Pages, 2)
	assert.Equal(t, 792.0, info.Pages[1].Height)

	_, err = execute(t, "info", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestStampCmd(t *testing.T) {
	dir := t.TempDir()
	original := testpdf.Letter(1)
	in := writeFile(t, dir, "in.pdf", original)
	staff := writeFile(t, dir, "staff.png", solidPNG(t, 100, 40, color.Black))
	recipient := writeFile(t, dir, "recipient.png", solidPNG(t, 100, 50, color.Black))
	out := filepath.Join(dir, "out.pdf")

	stdout, err := execute(t, "stamp", in, out,
		"--field", "recipient:1:0.6:0.8",
		"--field", "staff:1:0.1:0.8",
		"--image", "staff="+staff,
		"--image", "recipient="+recipient,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 stamp(s), revision 2")

	doc, err := document.OpenFile(out)
	require.NoError(t, err)
	content := pageContent(t, doc, 1)
	assert.Equal(t, 1, strings.Count(content, "/PdfStampIm1 Do"))
	assert.Equal(t, 1, strings.Count(content, "/PdfStampIm2 Do"))
	// Staff is embedded first regardless of flag order.
	assert.Less(t, strings.Index(content, "PdfStampIm1"), strings.Index(content, "PdfStampIm2"))

	unchanged, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, original, unchanged)
}

func TestStampCmd_Errors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.pdf", testpdf.Letter(1))
	staff := writeFile(t, dir, "staff.png", solidPNG(t, 10, 10, color.Black))
	gif := writeFile(t, dir, "staff.gif", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"))
	out := filepath.Join(dir, "out.pdf")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing image", []string{"--field", "staff:1:0.5:0.5", "--image", "recipient=" + staff}, "no image"},
		{"page out of range", []string{"--field", "staff:3:0.5:0.5", "--image", "staff=" + staff}, "out of range"},
		{"duplicate role", []string{"--field", "staff:1:0.5:0.5", "--field", "staff:1:0.2:0.2", "--image", "staff=" + staff}, "already has field"},
		{"malformed field", []string{"--field", "staff:1:0.5", "--image", "staff=" + staff}, "role:page:x:y"},
		{"unsupported image", []string{"--field", "staff:1:0.5:0.5", "--image", "staff=" + gif}, "unsupported image format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"stamp", in, out}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	_, err := os.Stat(out)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenderCmd(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.pdf", testpdf.Letter(1))
	out := filepath.Join(dir, "page.png")

	stdout, err := execute(t, "render", in, out, "--width", "306")
	require.NoError(t, err)
	assert.Contains(t, stdout, "306x396 px")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 306, 396), img.Bounds())
}

func TestRenderCmd_Overlay(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.pdf", testpdf.Letter(1))
	sig := writeFile(t, dir, "sig.png", solidPNG(t, 200, 100, color.NRGBA{R: 255, A: 255}))
	out := filepath.Join(dir, "page.png")

	_, err := execute(t, "render", in, out, "--width", "612",
		"--field", "staff:1:0.5:0.5",
		"--field", "recipient:1:0.1:0.1",
		"--image", "staff="+sig,
	)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	// The staff stamp preview covers 306,396 to 406,446.
	r, g, b, _ := img.At(356, 420).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(60))
	assert.Less(t, b>>8, uint32(60))

	// The recipient has no image, only its marker outline is drawn.
	mr, _, _, _ := img.At(61, 67).RGBA()
	assert.Equal(t, uint32(0xd0), mr>>8)
}

func TestDrawOverlay_LeavesCachedPageAlone(t *testing.T) {
	doc, err := document.Open(testpdf.Letter(1))
	require.NoError(t, err)
	r := render.NewRenderer(render.WithCacheEntries(4))
	res, err := r.Render(context.Background(), doc, 1, 612)
	require.NoError(t, err)
	before := bytes.Clone(res.Image.Pix)

	sig, err := images.New(common.Staff, "", solidPNG(t, 200, 100, color.NRGBA{R: 255, A: 255}), images.DefaultLimits())
	require.NoError(t, err)
	field := common.Field{ID: "s1", Role: common.Staff, PageNumber: 1, Position: coords.Normalized{X: 0.5, Y: 0.5}}
	entries, err := overlay.Project([]common.Field{field}, res.Geometry, overlay.Images{common.Staff: sig}, overlay.Options{})
	require.NoError(t, err)

	drawn, err := drawOverlay(res.Image, entries)
	require.NoError(t, err)
	assert.NotSame(t, res.Image, drawn)
	assert.NotEqual(t, before, drawn.Pix)
	assert.Equal(t, before, res.Image.Pix)

	cached, err := r.Render(context.Background(), doc, 1, 612)
	require.NoError(t, err)
	assert.Equal(t, before, cached.Image.Pix)
}

func TestLocateCmd(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.pdf", testpdf.Letter(1))

	out, err := execute(t, "locate", in, "--width", "612", "--click", "306,396")
	require.NoError(t, err)
	assert.Contains(t, out, "Normalized: 0.5000,0.5000")
	assert.Contains(t, out, "100x100 pt at 306.00,296.00")

	out, err = execute(t, "locate", in, "--width", "612", "--click", "700,10")
	require.NoError(t, err)
	assert.Contains(t, out, "Normalized: 1.0000,", "clamped")

	_, err = execute(t, "locate", in, "--width", "612", "--click", "700,10", "--strict")
	assert.Error(t, err)
}

func TestLocateCmd_OffsetMediaBox(t *testing.T) {
	data := testpdf.Build([]testpdf.Page{{Width: 612, Height: 792, X: 100, Y: 50}}, testpdf.Options{})
	in := writeFile(t, t.TempDir(), "in.pdf", data)

	out, err := execute(t, "locate", in, "--width", "612", "--click", "306,396")
	require.NoError(t, err)
	assert.Contains(t, out, "Normalized: 0.5000,0.5000")
	assert.Contains(t, out, "100x100 pt at 406.00,346.00")

	// The point matches where the stamp is actually drawn.
	doc, err := document.Open(data)
	require.NoError(t, err)
	opts := stamp.DefaultOptions()
	field := common.Field{Role: common.Staff, PageNumber: 1, Position: coords.Normalized{X: 0.5, Y: 0.5}}
	place, err := stamp.New(opts).Place(doc, field, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, coords.Point{X: 406, Y: 346}, place.Origin)
}

func TestRunCmd_Manifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "contract.pdf", testpdf.Letter(1))
	writeFile(t, dir, "staff.png", solidPNG(t, 60, 20, color.Black))
	recipient := writeFile(t, dir, "recipient.png", solidPNG(t, 40, 40, color.Black))
	manifest := writeFile(t, dir, "abc.yaml", []byte(`document: contract.pdf
fields:
  - role: staff
    page: 1
    x: 0.1
    y: 0.8
  - role: recipient
    page: 1
    x: 0.6
    y: 0.8
images:
  staff: staff.png
`))

	out, err := execute(t, "run", manifest, "--recipient-image", recipient)
	require.NoError(t, err)
	assert.Contains(t, out, "session abc: submitted")

	doc, err := document.OpenFile(filepath.Join(dir, "abc.signed.pdf"))
	require.NoError(t, err)
	assert.Contains(t, out, doc.Digest())
	content := pageContent(t, doc, 1)
	assert.Contains(t, content, "/PdfStampIm1 Do")
	assert.Contains(t, content, "/PdfStampIm2 Do")
}

func TestRunCmd_RecipientFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "contract.pdf", testpdf.Letter(1))
	writeFile(t, dir, "recipient.png", solidPNG(t, 40, 20, color.Black))
	manifest := writeFile(t, dir, "xyz.yaml", []byte(`document: contract.pdf
fields:
  - role: recipient
    page: 1
    x: 0.6
    y: 0.8
images:
  recipient: recipient.png
output: xyz.pdf
`))

	out, err := execute(t, "run", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "session xyz: submitted")

	doc, err := document.OpenFile(filepath.Join(dir, "xyz.pdf"))
	require.NoError(t, err)
	assert.Contains(t, pageContent(t, doc, 1), "/PdfStampIm1 Do")

	// Without a reference or a flag there is nothing to draw.
	bare := writeFile(t, dir, "bare.yaml", []byte(`document: contract.pdf
fields:
  - role: recipient
    page: 1
    x: 0.6
    y: 0.8
`))
	_, err = execute(t, "run", bare)
	assert.ErrorContains(t, err, "--recipient-image")
}

func TestRunCmd_Arguments(t *testing.T) {
	_, err := execute(t, "run")
	assert.ErrorContains(t, err, "either a manifest or --session")

	_, err = execute(t, "run", "--session", "abc")
	assert.ErrorContains(t, err, "document_url is not configured")
}

func TestRootCmd_BadConfig(t *testing.T) {
	conf := writeFile(t, t.TempDir(), "pdfstamp.toml", []byte("[log]\nlevel = \"loud\"\n"))
	_, err := execute(t, "version", "--config", conf)
	assert.Error(t, err)
}
