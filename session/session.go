// Package session drives one document through the signing flow: load,
// staff stamp, recipient stamp, submit.
//
// A Session owns the current document. Every embed starts from the last
// good revision and its result becomes the next one, so the staff stamp is
// always embedded before the recipient stamp and neither is embedded twice.
// Failures move the session to Failed with the last good document kept for
// a retry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/fields"
	"github.com/digitorus/pdfstamp/images"
	"github.com/digitorus/pdfstamp/stamp"
	"github.com/google/uuid"
)

// Session is a signing session. Its methods are safe for concurrent use,
// but only one embed or submit runs at a time; others fail with ErrBusy.
type Session struct {
	id         string
	docs       DocumentService
	images     ImageSource
	submission SubmissionService
	compositor Compositor
	logger     *slog.Logger
	observer   func(Transition)
	now        func() time.Time

	mu       sync.Mutex
	state    State
	failure  *Failure
	current  *document.Document
	registry *fields.Registry
	refs     map[common.Role]string
	imgs     map[common.Role]*images.Image
	embedded map[common.Role]bool
	busy     bool
	epoch    uint64
	history  []Transition
	pending  []Transition

	// staffFailed is set while a failed staff embed awaits its retry,
	// whatever failure the session reports since.
	staffFailed bool
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session id. By default a random UUID is used.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithCompositor replaces the default stamp pipeline.
func WithCompositor(c Compositor) Option {
	return func(s *Session) { s.compositor = c }
}

// WithLogger sets the logger for transitions and failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithObserver registers fn to be called after every transition. It is
// called without the session lock held.
func WithObserver(fn func(Transition)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithClock sets the time source for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New returns a session in the Loading state. Call Load to fetch its
// document.
func New(docs DocumentService, imgs ImageSource, submission SubmissionService, opts ...Option) *Session {
	s := &Session{
		docs:       docs,
		images:     imgs,
		submission: submission,
		state:      Loading,
		refs:       map[common.Role]string{},
		imgs:       map[common.Role]*images.Image{},
		embedded:   map[common.Role]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.compositor == nil {
		s.compositor = stamp.New(stamp.DefaultOptions())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session", s.id)
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Load fetches the document and its fields. It is permitted in Loading and
// after a failed load. On success the staff stamp is embedded right away
// when a staff field exists and the staff image can be resolved; an error
// from that step is returned as a CompositeError while the load itself
// stands.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return common.ErrBusy
	}
	if s.state != Loading && !s.failedWith(LoadFailure) {
		defer s.mu.Unlock()
		return s.invalid("load")
	}
	s.busy = true
	s.mu.Unlock()

	doc, registry, refs, err := s.fetch(ctx)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.fail(&Failure{Kind: LoadFailure, Err: err, Stage: Loading})
		s.unlock()
		return &common.LoadError{Err: err}
	}
	s.current, s.registry, s.refs = doc, registry, refs
	s.setState(Loaded, 0, nil)
	s.logger.Info("document loaded", "pages", doc.PageCount(), "fields", registry.Len(), "digest", doc.Digest())
	s.unlock()

	return s.autoStaff(ctx)
}

func (s *Session) fetch(ctx context.Context) (*document.Document, *fields.Registry, map[common.Role]string, error) {
	bundle, err := s.docs.FetchSession(ctx, s.id)
	if err != nil {
		return nil, nil, nil, err
	}
	doc, err := document.Open(bundle.Document)
	if err != nil {
		return nil, nil, nil, err
	}
	if bundle.PageCount != 0 && bundle.PageCount != doc.PageCount() {
		return nil, nil, nil, fmt.Errorf("document has %d pages, service reported %d", doc.PageCount(), bundle.PageCount)
	}

	registry := fields.NewRegistry(doc.PageCount())
	for _, spec := range bundle.Fields {
		f := common.Field{
			ID:         spec.ID,
			Role:       spec.Role,
			PageNumber: spec.PageNumber,
			Position:   coords.FromConvention(spec.Position, bundle.Convention),
		}
		if err := registry.Add(f); err != nil {
			return nil, nil, nil, fmt.Errorf("field %q: %w", spec.ID, err)
		}
	}

	refs := make(map[common.Role]string, len(bundle.ImageRefs))
	for role, ref := range bundle.ImageRefs {
		if ref != "" {
			refs[role] = ref
		}
	}
	return doc, registry, refs, nil
}

// autoStaff performs the automatic transitions out of Loaded.
func (s *Session) autoStaff(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Loaded {
		s.mu.Unlock()
		return nil
	}
	if _, ok := s.registry.ByRole(common.Staff); !ok {
		s.setState(AwaitingRecipientDraw, 0, nil)
		s.unlock()
		return nil
	}
	ref := s.refs[common.Staff]
	s.mu.Unlock()

	if ref == "" {
		s.logger.Info("waiting for staff image")
		return nil
	}
	return s.RetryStaff(ctx)
}

// RetryStaff resolves the staff image from its reference and embeds it. It
// is permitted in Loaded and after a failed staff embed.
func (s *Session) RetryStaff(ctx context.Context) error {
	s.mu.Lock()
	ref := s.refs[common.Staff]
	err := s.check(common.Staff, s.staffAllowed)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if ref == "" {
		return errors.New("no staff image reference")
	}

	img, err := s.images.FetchImage(ctx, common.Staff, ref)
	if err != nil {
		s.mu.Lock()
		if s.check(common.Staff, s.staffAllowed) == nil {
			s.fail(&Failure{Kind: CompositeFailure, Err: err, Stage: s.stage(), Role: common.Staff, Document: s.current})
		}
		s.unlock()
		return &common.CompositeError{Role: common.Staff, Err: err}
	}
	return s.EmbedStaff(ctx, img)
}

// EmbedStaff embeds img as the staff stamp. It is permitted in Loaded and
// after a failed staff embed.
func (s *Session) EmbedStaff(ctx context.Context, img *images.Image) error {
	return s.embed(ctx, common.Staff, img, s.staffAllowed)
}

// DrawRecipient embeds img as the recipient stamp on top of the staff
// stamp. It is permitted in AwaitingRecipientDraw and after a failed embed
// of either role, so a failed staff stamp does not block the recipient.
func (s *Session) DrawRecipient(ctx context.Context, img *images.Image) error {
	return s.embed(ctx, common.Recipient, img, func() bool {
		return s.state == AwaitingRecipientDraw || s.failedWith(CompositeFailure)
	})
}

// staffAllowed reports whether the staff stamp may be embedded: from
// Loaded, or after a failed staff embed as long as the recipient stamp is
// not on the page yet.
func (s *Session) staffAllowed() bool {
	if s.state == Loaded {
		return true
	}
	return s.staffFailed && !s.embedded[common.Recipient] && s.state != Submitted
}

// check reports whether an embed for role may start now.
func (s *Session) check(role common.Role, allowed func() bool) error {
	switch {
	case s.busy:
		return common.ErrBusy
	case s.embedded[role]:
		return fmt.Errorf("%w: %s stamp already embedded", common.ErrInvalidTransition, role)
	case !allowed():
		return s.invalid("embed " + role.String())
	}
	return nil
}

func (s *Session) embed(ctx context.Context, role common.Role, img *images.Image, allowed func() bool) error {
	s.mu.Lock()
	if err := s.check(role, allowed); err != nil {
		s.mu.Unlock()
		return err
	}
	field, ok := s.registry.ByRole(role)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: no %s field", common.ErrInvalidTransition, role)
	}
	base, stage, epoch := s.current, s.stage(), s.epoch
	s.busy = true
	s.mu.Unlock()

	out, err := s.compositor.Embed(ctx, base, field, img)

	s.mu.Lock()
	defer s.unlock()
	s.busy = false

	if s.epoch != epoch {
		s.logger.Info("embed result discarded", "role", role)
		return common.ErrCanceled
	}
	var unsupported *common.UnsupportedImageFormatError
	if errors.As(err, &unsupported) {
		s.logger.Warn("signer image rejected", "role", role, "error", err)
		return err
	}
	if err != nil {
		s.fail(&Failure{Kind: CompositeFailure, Err: err, Stage: stage, Role: role, Document: base})
		return &common.CompositeError{Role: role, Err: err}
	}

	s.current = out
	s.embedded[role] = true
	s.imgs[role] = img
	if role == common.Staff {
		s.staffFailed = false
		s.setState(StaffEmbedded, role, nil)
		s.setState(AwaitingRecipientDraw, role, nil)
	} else {
		s.setState(RecipientEmbedded, role, nil)
	}
	return nil
}

// Submit uploads the final document. It is permitted in RecipientEmbedded
// and after a failed submit.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return common.ErrBusy
	}
	if s.state != RecipientEmbedded && !s.failedWith(SubmitFailure) {
		defer s.mu.Unlock()
		return s.invalid("submit")
	}
	doc := s.current
	s.busy = true
	s.mu.Unlock()

	err := s.submission.SubmitDocument(ctx, s.id, doc)

	s.mu.Lock()
	defer s.unlock()
	s.busy = false
	if err != nil {
		s.fail(&Failure{Kind: SubmitFailure, Err: err, Stage: RecipientEmbedded, Document: doc})
		return &common.SubmitError{Err: err}
	}
	s.setState(Submitted, 0, nil)
	return nil
}

// Cancel discards the result of the embed in progress, if any. The embed
// itself runs to completion; its caller receives ErrCanceled and the
// session keeps its previous document.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		s.epoch++
		s.logger.Info("cancel requested", "state", s.state)
	}
}

// AddField adds a field for a role whose stamp has not been embedded yet.
// Staff fields can only change while the staff stamp can still be embedded.
func (s *Session) AddField(role common.Role, page int, pos coords.Normalized) (common.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(role); err != nil {
		return common.Field{}, err
	}
	return s.registry.AddField(role, page, pos)
}

// RemoveField removes a field whose stamp has not been embedded yet.
// Removing an unknown id is a no-op.
func (s *Session) RemoveField(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return nil
	}
	i := slices.IndexFunc(s.registry.Fields(), func(f common.Field) bool { return f.ID == id })
	if i < 0 {
		return nil
	}
	if err := s.editable(s.registry.Fields()[i].Role); err != nil {
		return err
	}
	s.registry.RemoveField(id)
	return nil
}

func (s *Session) editable(role common.Role) error {
	switch {
	case s.registry == nil:
		return fmt.Errorf("%w: no document loaded", common.ErrInvalidTransition)
	case s.busy:
		return common.ErrBusy
	case s.embedded[role] || s.state == Submitted:
		return fmt.Errorf("%w: %s stamp already embedded", common.ErrInvalidTransition, role)
	case role == common.Staff && !s.staffAllowed():
		return s.invalid("edit staff field")
	}
	return nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failure returns the reason for the Failed state, or nil.
func (s *Session) Failure() *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return nil
	}
	f := *s.failure
	return &f
}

// Document returns the last good document, or nil before loading.
func (s *Session) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Fields returns the fields in insertion order.
func (s *Session) Fields() []common.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return nil
	}
	return s.registry.Fields()
}

// IsReadyToProcess reports whether both roles have a field.
func (s *Session) IsReadyToProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry != nil && s.registry.IsReadyToProcess()
}

// Image returns the image embedded for role, if any.
func (s *Session) Image(role common.Role) *images.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imgs[role]
}

// ImageRef returns the image reference the document service supplied for
// role, or "".
func (s *Session) ImageRef(role common.Role) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs[role]
}

// History returns every transition so far, oldest first.
func (s *Session) History() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *Session) failedWith(kind FailureKind) bool {
	return s.state == Failed && s.failure != nil && s.failure.Kind == kind
}

// stage is the state an action started from, looking through Failed.
func (s *Session) stage() State {
	if s.state == Failed && s.failure != nil {
		return s.failure.Stage
	}
	return s.state
}

func (s *Session) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s in state %s", common.ErrInvalidTransition, action, s.state)
}

func (s *Session) fail(f *Failure) {
	if f.Kind == CompositeFailure && f.Role == common.Staff {
		s.staffFailed = true
	}
	s.failure = f
	s.setState(Failed, f.Role, f.Err)
	s.logger.Warn("session failed", "kind", f.Kind, "stage", f.Stage, "error", f.Err)
}

// setState must be called with mu held.
func (s *Session) setState(to State, role common.Role, err error) {
	t := Transition{From: s.state, To: to, Role: role, Err: err, At: s.now()}
	if s.current != nil {
		t.Digest = s.current.Digest()
	}
	if to != Failed {
		s.failure = nil
	}
	s.state = to
	s.history = append(s.history, t)
	s.pending = append(s.pending, t)

	attrs := []any{"from", t.From, "state", to}
	if role != 0 {
		attrs = append(attrs, "role", role)
	}
	if t.Digest != "" {
		attrs = append(attrs, "digest", t.Digest)
	}
	s.logger.Info("session transition", attrs...)
}

// unlock releases mu and then notifies the observer of the transitions
// recorded while it was held.
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if s.observer == nil {
		return
	}
	for _, t := range pending {
		s.observer(t)
	}
}
