package model

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is matched by every InsufficientDataError via errors.Is.
var ErrInsufficientData = errors.New("insufficient data")

// DataFormatError reports malformed input: missing required columns or an
// unparseable timestamp.
type DataFormatError struct {
	Line   int // 0 when the problem is not tied to a line
	Column string
	Err    error
}

func (e *DataFormatError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("data format: line %d column %q: %v", e.Line, e.Column, e.Err)
	case e.Column != "":
		return fmt.Sprintf("data format: column %q: %v", e.Column, e.Err)
	default:
		return fmt.Sprintf("data format: %v", e.Err)
	}
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// InsufficientDataError reports too few rows or days for a split or window
// configuration.
type InsufficientDataError struct {
	What string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d, got %d", e.What, e.Need, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// ShapeMismatchError describes prediction/target arrays of different shapes.
// It is resolved by truncation and surfaced as a note rather than returned.
type ShapeMismatchError struct {
	PredRows, PredCols   int
	TruthRows, TruthCols int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: predictions %dx%d, targets %dx%d",
		e.PredRows, e.PredCols, e.TruthRows, e.TruthCols)
}

// NumericInstabilityError records non-finite residuals that were filtered
// out before statistical testing.
type NumericInstabilityError struct {
	Dropped int
	Total   int
}

func (e *NumericInstabilityError) Error() string {
	return fmt.Sprintf("numeric instability: %d of %d residuals non-finite, statistics computed on the finite subset",
		e.Dropped, e.Total)
}
