// Package common holds the types shared by every stage of the stamping
// pipeline: signing roles, signature fields and the error taxonomy.
package common

import (
	"fmt"
	"strings"

	"github.com/digitorus/pdfstamp/coords"
)

// Role identifies one of the two parties that must stamp a document.
type Role int

const (
	// Staff stamps first, usually from a stored signature image.
	Staff Role = iota + 1
	// Recipient stamps last, usually by drawing on a canvas.
	Recipient
)

// RequiredRoles lists the roles that must each have a field before a
// document can be processed, in embedding order.
var RequiredRoles = []Role{Staff, Recipient}

func (r Role) String() string {
	switch r {
	case Staff:
		return "staff"
	case Recipient:
		return "recipient"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == Staff || r == Recipient
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "staff":
		return Staff, nil
	case "recipient":
		return Recipient, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Field is a signature field: the place on a page where a role's stamp goes.
// Fields are values; they are added and removed, never edited in place.
type Field struct {
	ID         string            `json:"id"`
	Role       Role              `json:"role"`
	PageNumber int               `json:"page_number"`
	Position   coords.Normalized `json:"position"`
}

// PageIndex returns the zero-based page index of the field.
func (f Field) PageIndex() int {
	return f.PageNumber - 1
}

// StampWidth is the width of every stamp in PDF points. Stamp height follows
// from the image aspect ratio. Changing the value moves every stamp placed
// under the previous one, so it is versioned by StampSizingVersion.
const StampWidth = 100.0

// StampSizingVersion identifies the stamp sizing contract above.
const StampSizingVersion = 1
