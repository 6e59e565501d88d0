// Package httpapi implements the session collaborators against a JSON
// HTTP service.
//
//	GET {base}/sessions/{id}            session bundle
//	PUT {base}/sessions/{id}/document   final document (application/pdf)
//
// Signer image references are URLs, resolved against the base URL, or
// data URLs.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/images"
	"github.com/digitorus/pdfstamp/session"
	"golang.org/x/time/rate"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the service root, e.g. "https://docs.example.com/api".
	BaseURL string

	// AuthToken is sent verbatim as the Authorization header.
	AuthToken string

	// Timeout bounds every request. Zero means no timeout beyond the
	// caller's context.
	Timeout time.Duration

	// RequestsPerSecond and Burst throttle outgoing requests. A zero rate
	// disables throttling.
	RequestsPerSecond float64
	Burst             int

	// MaxDocumentBytes caps a fetched document. Zero means 64 MiB.
	MaxDocumentBytes int64

	// Limits is applied to fetched signer images.
	Limits images.Limits

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DigestHeader carries the BLAKE2b digest of a submitted document.
const DigestHeader = "X-Document-Digest"

const defaultMaxDocumentBytes = 64 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// TooLargeError reports a response body over the size limit.
type TooLargeError struct {
	URL   string
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("response from %s exceeds %d bytes", e.URL, e.Limit)
}

// Client talks to the document and submission service.
type Client struct {
	base    *url.URL
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var (
	_ session.DocumentService   = (*Client)(nil)
	_ session.ImageSource       = (*Client)(nil)
	_ session.SubmissionService = (*Client)(nil)
)

// New returns a client for cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("httpapi: BaseURL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("httpapi: invalid BaseURL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("httpapi: unsupported scheme %q", base.Scheme)
	}

	c := &Client{base: base, config: cfg, http: cfg.HTTPClient, logger: cfg.Logger}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.config.MaxDocumentBytes <= 0 {
		c.config.MaxDocumentBytes = defaultMaxDocumentBytes
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// sessionResponse is the wire form of a session bundle.
type sessionResponse struct {
	Document        []byte            `json:"document"`
	PageCount       int               `json:"page_count"`
	Convention      string            `json:"convention,omitempty"`
	Fields          []wireField       `json:"fields"`
	SignerImageURLs map[string]string `json:"signer_image_urls,omitempty"`
}

type wireField struct {
	ID         string  `json:"id,omitempty"`
	Role       string  `json:"role"`
	PageNumber int     `json:"page_number"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// FetchSession downloads the bundle of session id.
func (c *Client) FetchSession(ctx context.Context, id string) (*session.Bundle, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.sessionURL(id), nil, "", c.config.MaxDocumentBytes*2)
	if err != nil {
		return nil, err
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", id, err)
	}
	if int64(len(resp.Document)) > c.config.MaxDocumentBytes {
		return nil, fmt.Errorf("document of %d bytes exceeds limit %d", len(resp.Document), c.config.MaxDocumentBytes)
	}

	conv, err := coords.ParseConvention(resp.Convention)
	if err != nil {
		return nil, err
	}
	b := &session.Bundle{
		Document:   resp.Document,
		PageCount:  resp.PageCount,
		Convention: conv,
		ImageRefs:  make(map[common.Role]string, len(resp.SignerImageURLs)),
	}
	for _, f := range resp.Fields {
		role, err := common.ParseRole(f.Role)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.ID, err)
		}
		b.Fields = append(b.Fields, session.FieldSpec{
			ID:         f.ID,
			Role:       role,
			PageNumber: f.PageNumber,
			Position:   coords.Normalized{X: f.X, Y: f.Y},
		})
	}
	for name, ref := range resp.SignerImageURLs {
		role, err := common.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("signer image: %w", err)
		}
		b.ImageRefs[role] = ref
	}
	return b, nil
}

// FetchImage downloads the image at ref. The Content-Type of the response,
// when it names an image type, must agree with the image data.
func (c *Client) FetchImage(ctx context.Context, role common.Role, ref string) (*images.Image, error) {
	if strings.HasPrefix(ref, "data:") {
		return images.FromDataURL(role, ref, c.config.Limits)
	}
	u, err := c.base.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %q: %w", ref, err)
	}

	limit := c.config.Limits.MaxBytes
	if limit <= 0 {
		limit = images.DefaultLimits().MaxBytes
	}
	body, header, err := c.do(ctx, http.MethodGet, u.String(), nil, "", limit)
	var tooLarge *TooLargeError
	if errors.As(err, &tooLarge) {
		return nil, &common.ImageTooLargeError{What: "size", Size: limit + 1, Limit: limit}
	}
	if err != nil {
		return nil, err
	}

	var declared images.MIME
	if mt, _, err := mime.ParseMediaType(header.Get("Content-Type")); err == nil && strings.HasPrefix(mt, "image/") {
		declared = images.MIME(mt)
	}
	return images.New(role, declared, body, c.config.Limits)
}

// SubmitDocument uploads the final document of session id.
func (c *Client) SubmitDocument(ctx context.Context, id string, doc *document.Document) error {
	if doc == nil {
		return errors.New("no document to submit")
	}
	hdr := http.Header{DigestHeader: []string{doc.Digest()}}
	_, _, err := c.doWithHeader(ctx, http.MethodPut, c.sessionURL(id)+"/document", doc.Bytes(), "application/pdf", hdr, 1<<20)
	if err != nil {
		return err
	}
	c.logger.Info("document submitted", "session", id, "bytes", doc.Len(), "digest", doc.Digest())
	return nil
}

func (c *Client) sessionURL(id string) string {
	return c.base.JoinPath("sessions", id).String()
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, contentType string, limit int64) ([]byte, http.Header, error) {
	return c.doWithHeader(ctx, method, target, body, contentType, nil, limit)
}

func (c *Client) doWithHeader(ctx context.Context, method, target string, body []byte, contentType string, extra http.Header, limit int64) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range extra {
		req.Header[k] = v
	}
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", c.config.AuthToken)
	}

	c.logger.Debug("http request", "method", method, "url", target, "bytes", len(body))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, nil, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(msg)}
	}
	if int64(len(respBody)) > limit {
		return nil, nil, &TooLargeError{URL: target, Limit: limit}
	}
	return respBody, resp.Header, nil
}
