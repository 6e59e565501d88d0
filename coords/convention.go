package coords

import "fmt"

// Convention names the origin a stored normalized position was measured from.
type Convention int

const (
	// TopLeft is the editor convention used throughout this module.
	TopLeft Convention = iota
	// BottomLeft is the legacy backend convention: Y grows upwards from the
	// bottom edge of the page.
	BottomLeft
)

func (c Convention) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case BottomLeft:
		return "bottom-left"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// ParseConvention parses "top-left" or "bottom-left". The empty string
// selects TopLeft.
func ParseConvention(s string) (Convention, error) {
	switch s {
	case "", "top-left":
		return TopLeft, nil
	case "bottom-left":
		return BottomLeft, nil
	default:
		return TopLeft, fmt.Errorf("unknown coordinate convention %q", s)
	}
}

// FromConvention converts a position recorded in convention c into the
// top-left convention. It is the only place the Y axis is ever flipped.
func FromConvention(n Normalized, c Convention) Normalized {
	if c == BottomLeft {
		return Normalized{X: n.X, Y: 1 - n.Y}
	}
	return n
}
