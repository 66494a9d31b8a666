package services

import (
	"errors"
	"fmt"
)

// Dashboard service errors
var (
	// ErrNoData is returned when the filter leaves no records.
	ErrNoData = errors.New("no data after filtering")

	// ErrInsufficientData is returned in strict mode when the history is too
	// short for the seasonal model.
	ErrInsufficientData = errors.New("insufficient history for a seasonal forecast")

	// ErrUnsupportedFormat is returned for an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// InsufficientHistoryError carries the point counts behind ErrInsufficientData.
type InsufficientHistoryError struct {
	Points   int
	Required int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%v: %d monthly points, %d required", ErrInsufficientData, e.Points, e.Required)
}

// Is makes errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientData
}
