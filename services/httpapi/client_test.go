package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

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

type fakeService struct {
	t         *testing.T
	pdf       []byte
	staffPNG  []byte
	submitted []byte
	digest    string
	auth      string
	failPuts  atomic.Int32
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.auth = r.Header.Get("Authorization")
		if r.PathValue("id") != "abc" {
			http.Error(w, "no such session", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(sessionResponse{
			Document:  f.pdf,
			PageCount: 1,
			Fields: []wireField{
				{ID: "s1", Role: "staff", PageNumber: 1, X: 0.1, Y: 0.8},
				{ID: "r1", Role: "recipient", PageNumber: 1, X: 0.6, Y: 0.8},
			},
			SignerImageURLs: map[string]string{"staff": "images/staff.png"},
		})
	})
	mux.HandleFunc("GET /api/images/staff.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(f.staffPNG)
	})
	mux.HandleFunc("GET /api/images/mislabeled", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(f.staffPNG)
	})
	mux.HandleFunc("PUT /api/sessions/{id}/document", func(w http.ResponseWriter, r *http.Request) {
		if f.failPuts.Add(-1) >= 0 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		assert.Equal(f.t, "application/pdf", r.Header.Get("Content-Type"))
		f.digest = r.Header.Get(DigestHeader)
		f.submitted, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func setup(t *testing.T) (*fakeService, *Client) {
	t.Helper()
	f := &fakeService{t: t, pdf: testpdf.Letter(1), staffPNG: pngBytes(t, 60, 30)}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:           srv.URL + "/api",
		AuthToken:         "Bearer token",
		Timeout:           5 * time.Second,
		RequestsPerSecond: 100,
		Burst:             10,
		Limits:            images.DefaultLimits(),
	})
	require.NoError(t, err)
	return f, c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "ftp://example.com"})
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestFetchSession(t *testing.T) {
	f, c := setup(t)

	b, err := c.FetchSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", f.auth)
	assert.Equal(t, f.pdf, b.Document)
	assert.Equal(t, coords.TopLeft, b.Convention)

	want := []session.FieldSpec{
		{ID: "s1", Role: common.Staff, PageNumber: 1, Position: coords.Normalized{X: 0.1, Y: 0.8}},
		{ID: "r1", Role: common.Recipient, PageNumber: 1, Position: coords.Normalized{X: 0.6, Y: 0.8}},
	}
	if diff := cmp.Diff(want, b.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	assert.Equal(t, "images/staff.png", b.ImageRefs[common.Staff])
}

func TestFetchSession_NotFound(t *testing.T) {
	_, c := setup(t)

	_, err := c.FetchSession(context.Background(), "nope")
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
	assert.Equal(t, "no such session", status.Body)
}

func TestFetchImage(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	img, err := c.FetchImage(ctx, common.Staff, "images/staff.png")
	require.NoError(t, err)
	assert.Equal(t, images.PNG, img.MIME)
	assert.Equal(t, 60, img.Width)

	_, err = c.FetchImage(ctx, common.Staff, "images/mislabeled")
	var unsupported *common.UnsupportedImageFormatError
	assert.ErrorAs(t, err, &unsupported)

	c.config.Limits.MaxBytes = 10
	_, err = c.FetchImage(ctx, common.Staff, "images/staff.png")
	var tooLarge *common.ImageTooLargeError
	assert.ErrorAs(t, err, &tooLarge)
}

func TestSubmitDocument(t *testing.T) {
	f, c := setup(t)
	doc, err := document.Open(testpdf.Letter(1))
	require.NoError(t, err)

	f.failPuts.Store(1)
	var status *StatusError
	require.ErrorAs(t, c.SubmitDocument(context.Background(), "abc", doc), &status)
	assert.Equal(t, http.StatusServiceUnavailable, status.StatusCode)

	require.NoError(t, c.SubmitDocument(context.Background(), "abc", doc))
	assert.Equal(t, doc.Bytes(), f.submitted)
	assert.Equal(t, doc.Digest(), f.digest)
}

func TestClient_CanceledContext(t *testing.T) {
	_, c := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchSession(ctx, "abc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_DrivesSession(t *testing.T) {
	f, c := setup(t)
	s := session.New(c, c, c, session.WithID("abc"))
	ctx := context.Background()

	require.NoError(t, s.Load(ctx))
	require.Equal(t, session.AwaitingRecipientDraw, s.State())

	img, err := images.New(common.Recipient, images.PNG, pngBytes(t, 40, 40), images.DefaultLimits())
	require.NoError(t, err)
	require.NoError(t, s.DrawRecipient(ctx, img))
	require.NoError(t, s.Submit(ctx))

	assert.Equal(t, s.Document().Bytes(), f.submitted)
	assert.Equal(t, session.Submitted, s.State())
}
