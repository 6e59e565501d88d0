package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
)

var errNoDocument = errors.New("no document")

// Surface is one place a page is displayed. Renders requested on a surface
// are ordered: each request supersedes the ones before it, and only the
// latest request may commit its result and geometry.
type Surface struct {
	renderer *Renderer
	logger   *slog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    *Result
	err        error
	ready      chan struct{}
	settled    bool
}

// NewSurface returns a surface drawing with r.
func (r *Renderer) NewSurface() *Surface {
	return &Surface{
		renderer: r,
		logger:   r.logger,
		ready:    make(chan struct{}),
	}
}

// Render requests page at width and waits for it. Earlier renders on the
// surface that are still running are canceled. If a later request arrives
// before this one finishes, Render returns common.ErrSuperseded and the
// result is not committed.
func (s *Surface) Render(ctx context.Context, doc *document.Document, page, width int) (Result, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	if s.settled {
		s.ready = make(chan struct{})
		s.settled = false
	}
	s.mu.Unlock()

	res, err := s.renderer.Render(ctx, doc, page, width)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("render superseded",
			slog.Int("page", page),
			slog.Uint64("generation", gen),
			slog.Uint64("latest", s.generation))
		return Result{}, common.ErrSuperseded
	}

	s.cancel = nil
	if err != nil {
		s.current, s.err = nil, err
		s.logger.Warn("render failed", slog.Int("page", page), slog.Any("error", err))
	} else {
		res.Generation = gen
		s.current, s.err = &res, nil
	}
	close(s.ready)
	s.settled = true
	return res, err
}

// Ready returns a channel that is closed when the latest requested render
// has settled. A new request after that returns a fresh channel.
func (s *Surface) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Current returns the committed render, if the latest request succeeded.
func (s *Surface) Current() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Result{}, false
	}
	return *s.current, true
}

// Geometry returns the geometry of the committed render.
func (s *Surface) Geometry() (coords.Geometry, bool) {
	res, ok := s.Current()
	return res.Geometry, ok
}

// Err returns the error of the latest settled request.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Generation returns the number of renders requested so far.
func (s *Surface) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}
