package pdfstamp

import (
	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
)

// StampBuilder configures a staged stamp.
type StampBuilder struct {
	doc  *Document
	role common.Role
	data []byte

	page       int
	pos        coords.Normalized
	convention coords.Convention
	placed     bool
}

// At places the stamp on page (1-based) at the normalized position x, y.
// The stamp's top-left corner is anchored there.
func (sb *StampBuilder) At(page int, x, y float64) *StampBuilder {
	sb.page = page
	sb.pos = coords.Normalized{X: x, Y: y}
	sb.placed = true
	return sb
}

// Convention sets the origin the position passed to At is expressed in.
func (sb *StampBuilder) Convention(c coords.Convention) *StampBuilder {
	sb.convention = c
	return sb
}

// Role returns the role the stamp is staged for.
func (sb *StampBuilder) Role() common.Role {
	return sb.role
}

func (sb *StampBuilder) position() coords.Normalized {
	return coords.FromConvention(sb.pos, sb.convention)
}
