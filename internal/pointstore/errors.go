package pointstore

import (
	"fmt"
)

// FormatError is returned when a point source cannot be parsed
type FormatError struct {
	Source string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unreadable point source %s: %v", e.Source, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// CRSUndefinedError is returned when neither the source nor the caller defines a CRS
type CRSUndefinedError struct {
	Source string
}

func (e *CRSUndefinedError) Error() string {
	return fmt.Sprintf("point source %s declares no coordinate reference system and none was assigned", e.Source)
}
