// Package filestore implements the session collaborators on top of a
// directory of YAML manifests.
//
// A session with id "abc" is described by "abc.yaml" in the store
// directory. Paths inside a manifest are relative to that directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/images"
	"github.com/digitorus/pdfstamp/session"
	"gopkg.in/yaml.v3"
)

// ManifestExt is the extension of manifest files.
const ManifestExt = ".yaml"

// Manifest is the on-disk description of a session.
type Manifest struct {
	// Document is the path of the PDF to stamp.
	Document string `yaml:"document"`

	// Pages is the expected page count. Zero skips the check.
	Pages int `yaml:"pages,omitempty"`

	// Convention is "top-left" (default) or "bottom-left" for field
	// positions captured by the legacy backend.
	Convention string `yaml:"convention,omitempty"`

	// Fields lists the signature fields.
	Fields []ManifestField `yaml:"fields"`

	// Images maps a role name to an image path or a data URL.
	Images map[string]string `yaml:"images,omitempty"`

	// Output is where the submitted document is written. It defaults to
	// "<id>.signed.pdf".
	Output string `yaml:"output,omitempty"`
}

// ManifestField is a field entry of a manifest.
type ManifestField struct {
	ID   string  `yaml:"id,omitempty"`
	Role string  `yaml:"role"`
	Page int     `yaml:"page"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

// Store serves sessions from a directory.
type Store struct {
	dir    string
	limits images.Limits
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLimits sets the limits applied to signer images.
func WithLimits(l images.Limits) Option {
	return func(s *Store) { s.limits = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a store rooted at dir.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, limits: images.DefaultLimits()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

var (
	_ session.DocumentService   = (*Store)(nil)
	_ session.ImageSource       = (*Store)(nil)
	_ session.SubmissionService = (*Store)(nil)
)

// ReadManifest parses the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Document == "" {
		return nil, fmt.Errorf("manifest %s: document is required", path)
	}
	return &m, nil
}

// WriteManifest stores m as the manifest of session id.
func (s *Store) WriteManifest(id string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return writeFile(s.manifestPath(id), data)
}

// Manifest returns the manifest of session id.
func (s *Store) Manifest(id string) (*Manifest, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return ReadManifest(s.manifestPath(id))
}

// FetchSession reads the manifest and document of session id.
func (s *Store) FetchSession(ctx context.Context, id string) (*session.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := s.Manifest(id)
	if err != nil {
		return nil, err
	}

	conv, err := coords.ParseConvention(m.Convention)
	if err != nil {
		return nil, err
	}

	b := &session.Bundle{
		PageCount:  m.Pages,
		Convention: conv,
		ImageRefs:  make(map[common.Role]string, len(m.Images)),
	}
	for i, f := range m.Fields {
		role, err := common.ParseRole(f.Role)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		b.Fields = append(b.Fields, session.FieldSpec{
			ID:         f.ID,
			Role:       role,
			PageNumber: f.Page,
			Position:   coords.Normalized{X: f.X, Y: f.Y},
		})
	}
	for name, ref := range m.Images {
		role, err := common.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("images: %w", err)
		}
		b.ImageRefs[role] = ref
	}

	b.Document, err = os.ReadFile(s.path(m.Document))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("session fetched", "session", id, "bytes", len(b.Document), "fields", len(b.Fields))
	return b, nil
}

// FetchImage reads an image file, or decodes ref when it is a data URL.
func (s *Store) FetchImage(ctx context.Context, role common.Role, ref string) (*images.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.HasPrefix(ref, "data:") {
		return images.FromDataURL(role, ref, s.limits)
	}

	f, err := os.Open(s.path(ref))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := io.Reader(f)
	if s.limits.MaxBytes > 0 {
		r = io.LimitReader(f, s.limits.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return images.New(role, "", data, s.limits)
}

// SubmitDocument writes doc to the manifest's output path.
func (s *Store) SubmitDocument(ctx context.Context, id string, doc *document.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil {
		return errors.New("no document to submit")
	}
	m, err := s.Manifest(id)
	if err != nil {
		return err
	}
	out := m.Output
	if out == "" {
		out = id + ".signed.pdf"
	}
	if err := writeFile(s.path(out), doc.Bytes()); err != nil {
		return err
	}
	s.logger.Info("document submitted", "session", id, "path", s.path(out), "digest", doc.Digest())
	return nil
}

// OutputPath returns where SubmitDocument writes session id.
func (s *Store) OutputPath(id string) (string, error) {
	m, err := s.Manifest(id)
	if err != nil {
		return "", err
	}
	if m.Output == "" {
		return s.path(id + ".signed.pdf"), nil
	}
	return s.path(m.Output), nil
}

func (s *Store) manifestPath(id string) string {
	return filepath.Join(s.dir, id+ManifestExt)
}

func (s *Store) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.dir, p)
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
