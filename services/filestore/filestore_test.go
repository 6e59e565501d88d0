package filestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/images"
	"github.com/digitorus/pdfstamp/internal/testpdf"
	"github.com/digitorus/pdfstamp/session"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

const manifest = `document: contract.pdf
pages: 2
convention: bottom-left
fields:
  - id: s1
    role: staff
    page: 1
    x: 0.1
    y: 0.25
  - role: Recipient
    page: 2
    x: 0.6
    y: 0.2
images:
  staff: staff.png
output: out/contract.signed.pdf
`

func setup(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contract.pdf"), testpdf.Letter(2), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staff.png"), pngBytes(t, 40, 20), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.yaml"), []byte(manifest), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0o755))
	return New(dir), dir
}

func TestFetchSession(t *testing.T) {
	store, _ := setup(t)

	b, err := store.FetchSession(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, 2, b.PageCount)
	assert.Equal(t, coords.BottomLeft, b.Convention)
	want := []session.FieldSpec{
		{ID: "s1", Role: common.Staff, PageNumber: 1, Position: coords.Normalized{X: 0.1, Y: 0.25}},
		{Role: common.Recipient, PageNumber: 2, Position: coords.Normalized{X: 0.6, Y: 0.2}},
	}
	if diff := cmp.Diff(want, b.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[common.Role]string{common.Staff: "staff.png"}, b.ImageRefs)
	assert.Equal(t, testpdf.Letter(2), b.Document)
}

func TestFetchSession_Errors(t *testing.T) {
	store, dir := setup(t)
	ctx := context.Background()

	_, err := store.FetchSession(ctx, "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = store.FetchSession(ctx, "../abc")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("document: x.pdf\nfields:\n  - role: notary\n"), 0o644))
	_, err = store.FetchSession(ctx, "bad")
	assert.ErrorContains(t, err, "unknown role")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("fields: []\n"), 0o644))
	_, err = store.FetchSession(ctx, "empty")
	assert.ErrorContains(t, err, "document is required")
}

func TestFetchImage(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	img, err := store.FetchImage(ctx, common.Staff, "staff.png")
	require.NoError(t, err)
	assert.Equal(t, images.PNG, img.MIME)
	assert.Equal(t, 40, img.Width)

	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 8, 4))
	img, err = store.FetchImage(ctx, common.Recipient, url)
	require.NoError(t, err)
	assert.Equal(t, common.Recipient, img.Role)

	small := New(store.dir, WithLimits(images.Limits{MaxBytes: 16}))
	_, err = small.FetchImage(ctx, common.Staff, "staff.png")
	var tooLarge *common.ImageTooLargeError
	assert.ErrorAs(t, err, &tooLarge)
}

func TestSubmitDocument(t *testing.T) {
	store, dir := setup(t)
	doc, err := document.Open(testpdf.Letter(1))
	require.NoError(t, err)

	require.NoError(t, store.SubmitDocument(context.Background(), "abc", doc))

	out, err := store.OutputPath("abc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "contract.signed.pdf"), out)
	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, doc.Bytes(), written)
}

func TestWriteManifest(t *testing.T) {
	store, _ := setup(t)
	m := &Manifest{
		Document: "contract.pdf",
		Fields:   []ManifestField{{Role: "recipient", Page: 1, X: 0.5, Y: 0.5}},
	}
	require.NoError(t, store.WriteManifest("new", m))

	got, err := store.Manifest("new")
	require.NoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("manifest (-want +got):\n%s", diff)
	}

	out, err := store.OutputPath("new")
	require.NoError(t, err)
	assert.Equal(t, "new.signed.pdf", filepath.Base(out))
}

func TestStore_DrivesSession(t *testing.T) {
	store, dir := setup(t)
	s := session.New(store, store, store, session.WithID("abc"))
	ctx := context.Background()

	require.NoError(t, s.Load(ctx))
	require.Equal(t, session.AwaitingRecipientDraw, s.State())

	staff := s.Fields()[0]
	assert.InDelta(t, 0.75, staff.Position.Y, 1e-9, "bottom-left manifest converted on load")

	img, err := store.FetchImage(ctx, common.Recipient, "staff.png")
	require.NoError(t, err)
	require.NoError(t, s.DrawRecipient(ctx, img))
	require.NoError(t, s.Submit(ctx))

	written, err := os.ReadFile(filepath.Join(dir, "out", "contract.signed.pdf"))
	require.NoError(t, err)
	doc, err := document.Open(written)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())
	assert.Equal(t, s.Document().Digest(), doc.Digest())
}
