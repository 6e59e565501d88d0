package coords

import "fmt"

// OutOfBoundsError reports a normalized position outside the unit square.
type OutOfBoundsError struct {
	X, Y float64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("position (%g, %g) is outside the page", e.X, e.Y)
}

// InvalidDimensionError reports a NaN, infinite or negative size.
type InvalidDimensionError struct {
	Name  string
	Value float64
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("invalid %s: %g", e.Name, e.Value)
}
