// Package fields keeps the ordered set of signature fields of a document.
package fields

import (
	"fmt"
	"iter"
	"slices"
	"strconv"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
)

// Registry is an insertion-ordered collection of signature fields holding at
// most one field per role. A Registry is not safe for concurrent use.
type Registry struct {
	pageCount int
	fields    []common.Field
	seq       int
}

// NewRegistry returns an empty registry for a document with pageCount pages.
func NewRegistry(pageCount int) *Registry {
	return &Registry{pageCount: pageCount}
}

// AddField places a field for role. It fails with DuplicateRoleError when
// the role already has a field, PageOutOfRangeError when page is not in the
// document and OutOfBoundsError when pos is outside the unit square. A
// failed call leaves the registry unchanged.
func (r *Registry) AddField(role common.Role, page int, pos coords.Normalized) (common.Field, error) {
	if !role.Valid() {
		return common.Field{}, fmt.Errorf("invalid role %d", role)
	}
	if existing, ok := r.ByRole(role); ok {
		return common.Field{}, &common.DuplicateRoleError{Role: role, Existing: existing.ID}
	}
	if page < 1 || page > r.pageCount {
		return common.Field{}, &common.PageOutOfRangeError{Page: page, PageCount: r.pageCount}
	}
	if err := pos.Validate(); err != nil {
		return common.Field{}, err
	}

	r.seq++
	f := common.Field{
		ID:         role.String() + "-" + strconv.Itoa(r.seq),
		Role:       role,
		PageNumber: page,
		Position:   pos,
	}
	r.fields = append(r.fields, f)
	return f, nil
}

// Add inserts a field that already carries an identifier, as received from
// the document service. The same invariants as AddField apply.
func (r *Registry) Add(f common.Field) error {
	if f.ID == "" {
		_, err := r.AddField(f.Role, f.PageNumber, f.Position)
		return err
	}
	if r.index(f.ID) >= 0 {
		return fmt.Errorf("field %q already exists", f.ID)
	}
	if _, err := r.AddField(f.Role, f.PageNumber, f.Position); err != nil {
		return err
	}
	// Keep the caller's identifier on the field just appended.
	r.fields[len(r.fields)-1].ID = f.ID
	return nil
}

// RemoveField removes the field with id. Removing an unknown id is a no-op.
func (r *Registry) RemoveField(id string) {
	if i := r.index(id); i >= 0 {
		r.fields = slices.Delete(r.fields, i, i+1)
	}
}

// FieldsForPage yields the fields on the 1-based page in insertion order.
// The sequence can be ranged over any number of times.
func (r *Registry) FieldsForPage(page int) iter.Seq[common.Field] {
	return func(yield func(common.Field) bool) {
		for _, f := range r.fields {
			if f.PageNumber != page {
				continue
			}
			if !yield(f) {
				return
			}
		}
	}
}

// Fields returns a copy of all fields in insertion order.
func (r *Registry) Fields() []common.Field {
	return slices.Clone(r.fields)
}

// ByRole returns the field of role, if any.
func (r *Registry) ByRole(role common.Role) (common.Field, bool) {
	for _, f := range r.fields {
		if f.Role == role {
			return f, true
		}
	}
	return common.Field{}, false
}

// IsReadyToProcess reports whether every required role has a field.
func (r *Registry) IsReadyToProcess() bool {
	for _, role := range common.RequiredRoles {
		if _, ok := r.ByRole(role); !ok {
			return false
		}
	}
	return true
}

// Len returns the number of fields.
func (r *Registry) Len() int {
	return len(r.fields)
}

// PageCount returns the page count the registry validates against.
func (r *Registry) PageCount() int {
	return r.pageCount
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.fields, func(f common.Field) bool { return f.ID == id })
}
