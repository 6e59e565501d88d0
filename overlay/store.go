package overlay

import (
	"maps"
	"slices"
	"sync"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/images"
)

// Store holds the inputs of Project and its last output. Setting an input
// to the value it already has does not invalidate the output.
type Store struct {
	opts Options

	mu       sync.Mutex
	fields   []common.Field
	geometry *coords.Geometry
	images   Images

	entries  []Entry
	err      error
	dirty    bool
	computed int
}

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	return &Store{opts: opts, images: Images{}, dirty: true}
}

// SetFields replaces the field list.
func (s *Store) SetFields(fields []common.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Equal(s.fields, fields) {
		return
	}
	s.fields = slices.Clone(fields)
	s.dirty = true
}

// SetGeometry records the geometry of a committed render.
func (s *Store) SetGeometry(g coords.Geometry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.geometry != nil && *s.geometry == g {
		return
	}
	s.geometry = &g
	s.dirty = true
}

// ClearGeometry drops the geometry, for example when the page is being
// re-rendered after a failure.
func (s *Store) ClearGeometry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.geometry == nil {
		return
	}
	s.geometry = nil
	s.dirty = true
}

// SetImage makes img available for role. A nil img removes it.
func (s *Store) SetImage(role common.Role, img *images.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images[role] == img {
		return
	}
	if img == nil {
		delete(s.images, role)
	} else {
		s.images[role] = img
	}
	s.dirty = true
}

// Entries returns the projection of the current inputs. Without geometry
// there is nothing to project and the result is empty.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		s.dirty = false
		s.computed++
		if s.geometry == nil {
			s.entries, s.err = nil, nil
		} else {
			s.entries, s.err = Project(s.fields, *s.geometry, maps.Clone(s.images), s.opts)
		}
	}
	return slices.Clone(s.entries), s.err
}
